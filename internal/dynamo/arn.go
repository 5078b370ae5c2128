package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sts"
)

// TableARN builds a DynamoDB table ARN from its parts.
func TableARN(region, accountID, tableName string) string {
	return fmt.Sprintf("arn:aws:dynamodb:%s:%s:table/%s", region, accountID, tableName)
}

// ResolveTableARN resolves the ARN of a table in the caller's account.
// The caller identity lookup happens once per invocation, up front, and
// the resulting ARN is passed into the job as an explicit input.
func (s *Service) ResolveTableARN(ctx context.Context, tableName string) (string, error) {
	identity, err := s.Identity.GetCallerIdentityWithContext(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to resolve caller identity: %w", err)
	}
	return TableARN(s.Region, aws.StringValue(identity.Account), tableName), nil
}
