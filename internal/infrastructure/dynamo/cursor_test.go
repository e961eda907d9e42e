package dynamo

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-blood-connect/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_RoundTrip(t *testing.T) {
	key := map[string]types.AttributeValue{
		"PK":     s("USER#u1"),
		"SK":     s("LOCATION#l1"),
		"GSI1PK": s("LOCATION#BD-wh0r#BG#A+#AVAILABLE#true"),
		"GSI1SK": s("wh0r35qr"),
	}
	c, err := encodeCursor(key)
	require.NoError(t, err)
	assert.NotEmpty(t, c)

	decoded, err := decodeCursor(c)
	require.NoError(t, err)
	assert.Equal(t, key, decoded)
}

func TestCursor_EmptyMeansNoPage(t *testing.T) {
	c, err := encodeCursor(nil)
	require.NoError(t, err)
	assert.Equal(t, Cursor(""), c)

	key, err := decodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, key)
}

func TestCursor_Invalid(t *testing.T) {
	_, err := decodeCursor("%%%not-base64")
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	_, err = decodeCursor(Cursor("bnVsbA")) // "null"
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestCursor_NonStringKeyRejected(t *testing.T) {
	_, err := encodeCursor(map[string]types.AttributeValue{"n": &types.AttributeValueMemberN{Value: "1"}})
	assert.Error(t, err)
}
