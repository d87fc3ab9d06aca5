package signal

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/HouseParty/internal/domain"
)

const tokenName = "realtime"

// tokenCodec signs and encrypts connection ids into access tokens.
type tokenCodec struct {
	sc *securecookie.SecureCookie
}

func newTokenCodec(secret string, ttl time.Duration) *tokenCodec {
	var hashKey, blockKey []byte
	if secret == "" {
		log.Warn().Str("module", "signal").Msg("no secret configured, access tokens only valid for this process")
		hashKey = securecookie.GenerateRandomKey(32)
		blockKey = securecookie.GenerateRandomKey(32)
	} else {
		h := sha256.Sum256([]byte("hash:" + secret))
		b := sha256.Sum256([]byte("block:" + secret))
		hashKey, blockKey = h[:], b[:]
	}
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(ttl / time.Second))
	return &tokenCodec{sc: sc}
}

func (t *tokenCodec) Issue(id domain.ConnectionID) (string, error) {
	return t.sc.Encode(tokenName, string(id))
}

func (t *tokenCodec) Parse(token string) (domain.ConnectionID, error) {
	var id string
	if err := t.sc.Decode(tokenName, token, &id); err != nil {
		return "", fmt.Errorf("%w: access token: %w", domain.ErrInvalidInput, err)
	}
	if id == "" {
		return "", domain.ErrConnectionIDEmpty
	}
	return domain.ConnectionID(id), nil
}
