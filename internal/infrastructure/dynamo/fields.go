package dynamo

// Non-key attribute names referenced by update and condition expressions.
const (
	fieldStatus         = "status"
	fieldSnsEndpointArn = "snsEndpointArn"
)
