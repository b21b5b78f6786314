package token

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

// ErrMalformed is returned for anything that is not a three segment token with
// a base64url JSON object payload.
var ErrMalformed = autherrors.ErrInvalidToken

var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// Decode extracts the claim set from a token's payload segment. The signature is
// not checked; see Verifier for that. Any failure yields nil claims.
func Decode(rawToken string) (Claims, error) {
	segments := strings.Split(rawToken, ".")
	if len(segments) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformed, len(segments))
	}

	payload, err := segmentParser.DecodeSegment(segments[1])
	if err != nil {
		return nil, fmt.Errorf("%w: payload encoding: %v", ErrMalformed, err)
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("%w: payload json: %v", ErrMalformed, err)
	}
	if claims == nil {
		return nil, fmt.Errorf("%w: payload is not an object", ErrMalformed)
	}
	return claims, nil
}
