package dynamo

import "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

// emailKey builds the primary key for the OTP table.
func emailKey(email string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"email": &types.AttributeValueMemberS{Value: email},
	}
}
