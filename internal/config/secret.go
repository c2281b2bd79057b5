package config

import (
	"context"
	"encoding/base64"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// KMSClient defines the AWS API surface required to decrypt secrets.
type KMSClient interface {
	Decrypt(ctx context.Context, in *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// NewKMSClient creates a KMS client from the default AWS configuration chain.
func NewKMSClient(ctx context.Context) (KMSClient, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for KMS: %w", err)
	}
	return kms.NewFromConfig(awsCfg), nil
}

// DecryptSecret decrypts a base64 encoded KMS ciphertext. The key is taken
// from the ciphertext metadata.
func DecryptSecret(ctx context.Context, client KMSClient, ciphertext string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("KMS ciphertext is not valid base64: %w", err)
	}

	out, err := client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob: blob,
	})
	if err != nil {
		return "", fmt.Errorf("KMS decrypt failed: %w", err)
	}

	return string(out.Plaintext), nil
}
