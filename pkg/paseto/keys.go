package pasetotoken

import (
	"strings"

	paseto "aidanwoods.dev/go-paseto"
)

// Mode selects between an encrypted (v4.local) and a signed (v4.public) token.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModePublic Mode = "public"
)

// Keys holds the material for one Mode. In public mode a verify-only
// deployment carries Public without Secret.
type Keys struct {
	Mode      Mode
	Symmetric *paseto.V4SymmetricKey
	Secret    *paseto.V4AsymmetricSecretKey
	Public    *paseto.V4AsymmetricPublicKey
}

// KeyStrings is the hex form kept in configuration.
type KeyStrings struct {
	Mode         Mode
	SymmetricHex string
	SecretHex    string
	PublicHex    string
}

func LoadKeys(in KeyStrings) (Keys, error) {
	switch in.Mode {
	case ModeLocal:
		return loadLocal(strings.TrimSpace(in.SymmetricHex))
	case ModePublic:
		return loadPublic(strings.TrimSpace(in.SecretHex), strings.TrimSpace(in.PublicHex))
	}
	return Keys{}, errUnknownMode
}

func loadLocal(h string) (Keys, error) {
	if h == "" {
		return Keys{}, ErrConfig{Msg: "local mode requires a symmetric key"}
	}
	k, err := paseto.V4SymmetricKeyFromHex(h)
	if err != nil {
		return Keys{}, ErrConfig{Msg: "symmetric key: " + err.Error()}
	}
	return Keys{Mode: ModeLocal, Symmetric: &k}, nil
}

// loadPublic derives the public half from the secret when only the secret is
// configured. An explicit public key takes precedence.
func loadPublic(secretHex, publicHex string) (Keys, error) {
	out := Keys{Mode: ModePublic}
	if secretHex != "" {
		sk, err := paseto.NewV4AsymmetricSecretKeyFromHex(secretHex)
		if err != nil {
			return Keys{}, ErrConfig{Msg: "secret key: " + err.Error()}
		}
		pk := sk.Public()
		out.Secret, out.Public = &sk, &pk
	}
	if publicHex != "" {
		pk, err := paseto.NewV4AsymmetricPublicKeyFromHex(publicHex)
		if err != nil {
			return Keys{}, ErrConfig{Msg: "public key: " + err.Error()}
		}
		out.Public = &pk
	}
	if out.Public == nil {
		return Keys{}, ErrConfig{Msg: "public mode requires a secret or public key"}
	}
	return out, nil
}

func NewLocalKeys() Keys {
	k := paseto.NewV4SymmetricKey()
	return Keys{Mode: ModeLocal, Symmetric: &k}
}

func NewPublicKeys() Keys {
	sk := paseto.NewV4AsymmetricSecretKey()
	pk := sk.Public()
	return Keys{Mode: ModePublic, Secret: &sk, Public: &pk}
}

// GenerateKeys returns fresh keys for mode.
func GenerateKeys(mode Mode) (Keys, error) {
	switch mode {
	case ModeLocal:
		return NewLocalKeys(), nil
	case ModePublic:
		return NewPublicKeys(), nil
	}
	return Keys{}, errUnknownMode
}

// Strings is the inverse of LoadKeys.
func (k Keys) Strings() KeyStrings {
	out := KeyStrings{Mode: k.Mode}
	if k.Symmetric != nil {
		out.SymmetricHex = k.Symmetric.ExportHex()
	}
	if k.Secret != nil {
		out.SecretHex = k.Secret.ExportHex()
	}
	if k.Public != nil {
		out.PublicHex = k.Public.ExportHex()
	}
	return out
}

func (k Keys) seal(tok paseto.Token, implicit []byte) (string, error) {
	switch k.Mode {
	case ModeLocal:
		if k.Symmetric == nil {
			return "", ErrConfig{Msg: "missing symmetric key"}
		}
		return tok.V4Encrypt(*k.Symmetric, implicit), nil
	case ModePublic:
		if k.Secret == nil {
			return "", ErrConfig{Msg: "verify-only keys cannot issue tokens"}
		}
		return tok.V4Sign(*k.Secret, implicit), nil
	}
	return "", errUnknownMode
}

func (k Keys) open(p paseto.Parser, raw string, implicit []byte) (*paseto.Token, error) {
	switch k.Mode {
	case ModeLocal:
		if k.Symmetric == nil {
			return nil, ErrConfig{Msg: "missing symmetric key"}
		}
		return p.ParseV4Local(*k.Symmetric, raw, implicit)
	case ModePublic:
		if k.Public == nil {
			return nil, ErrConfig{Msg: "missing public key"}
		}
		return p.ParseV4Public(*k.Public, raw, implicit)
	}
	return nil, errUnknownMode
}
