package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/leonardo-iot/iot-sdk-go/internal/auth"
	"github.com/rs/zerolog/log"
)

// Service is everything needed to call one IoT tenant: its UAA credentials,
// the optional identity broker used for token exchange, and the service
// endpoints.
type Service struct {
	Name      string            `yaml:"name"`
	UAA       auth.Credentials  `yaml:"uaa"`
	XSUAA     *auth.Credentials `yaml:"xsuaa,omitempty"`
	Endpoints map[string]string `yaml:"endpoints"`
}

// Validate checks the UAA and, when present, the broker credentials.
func (s Service) Validate() error {
	if err := s.UAA.Validate(); err != nil {
		return fmt.Errorf("service %q: %w", s.Name, err)
	}
	if s.XSUAA != nil {
		if err := s.XSUAA.Validate(); err != nil {
			return fmt.Errorf("service %q identity broker: %w", s.Name, err)
		}
	}
	return nil
}

type resolveOptions struct {
	kms      KMSClient
	readFile func(string) ([]byte, error)
}

type ResolveOption func(*resolveOptions)

// WithKMSClient sets the client used to decrypt a KMS protected secret.
func WithKMSClient(client KMSClient) ResolveOption {
	return func(o *resolveOptions) {
		o.kms = client
	}
}

// ResolveService determines the IoT service to call. Explicit IOT_UAA_*
// settings win; otherwise the service is read from VCAP_SERVICES, and
// failing that from the default environment file. Broker credentials come
// from XSUAA_* settings or the binding tagged "xsuaa".
func ResolveService(ctx context.Context, cfg Config, opts ...ResolveOption) (Service, error) {
	o := resolveOptions{readFile: os.ReadFile}
	for _, opt := range opts {
		opt(&o)
	}

	logger := log.Ctx(ctx)

	vcap, err := loadBindings(cfg.Binding, o.readFile)
	if err != nil {
		return Service{}, err
	}

	var svc Service
	if cfg.UAA.URL != "" {
		logger.Debug().Msg("using explicitly configured IoT service credentials")
		svc = Service{
			Name: cfg.Binding.ServiceName,
			UAA: auth.Credentials{
				URL:          cfg.UAA.URL,
				ClientID:     cfg.UAA.ClientID,
				ClientSecret: cfg.UAA.ClientSecret,
			},
			Endpoints: cfg.UAA.Endpoints,
		}

		if cfg.UAA.ClientSecretKMSCiphertext != "" {
			if o.kms == nil {
				o.kms, err = NewKMSClient(ctx)
				if err != nil {
					return Service{}, err
				}
			}
			svc.UAA.ClientSecret, err = DecryptSecret(ctx, o.kms, cfg.UAA.ClientSecretKMSCiphertext)
			if err != nil {
				return Service{}, err
			}
		}
	} else {
		var found bool
		svc, found, err = vcap.IoTService(cfg.Binding.ServiceName)
		if err != nil {
			return Service{}, err
		}
		if !found {
			return Service{}, fmt.Errorf("no IoT service binding found, set IOT_UAA_URL or bind a service tagged %q: %w",
				iotServiceTag, &auth.ConfigurationError{Fields: []string{"url", "clientid", "clientsecret"}})
		}
		logger.Debug().Str("service", svc.Name).Msg("using bound IoT service")
	}

	if cfg.XSUAA.URL != "" {
		svc.XSUAA = &auth.Credentials{
			URL:          cfg.XSUAA.URL,
			ClientID:     cfg.XSUAA.ClientID,
			ClientSecret: cfg.XSUAA.ClientSecret,
			XSAppName:    cfg.XSUAA.XSAppName,
		}
	} else {
		svc.XSUAA, err = vcap.XSUAA()
		if err != nil {
			return Service{}, err
		}
	}

	if err := svc.Validate(); err != nil {
		return Service{}, err
	}

	return svc, nil
}

// loadBindings reads VCAP_SERVICES, falling back to the default environment
// file. Neither being present yields no bindings.
func loadBindings(cfg BindingConfig, readFile func(string) ([]byte, error)) (VCAPServices, error) {
	if cfg.VCAPServices != "" {
		return ParseVCAPServices([]byte(cfg.VCAPServices))
	}

	if cfg.DefaultEnvFile == "" {
		return VCAPServices{}, nil
	}

	data, err := readFile(cfg.DefaultEnvFile)
	if errors.Is(err, fs.ErrNotExist) {
		return VCAPServices{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", cfg.DefaultEnvFile, err)
	}

	return parseDefaultEnv(data)
}
