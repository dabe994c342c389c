// Package keypair implements Snowflake key-pair authentication:
// loading the RSA private key, fingerprinting its public half the way the
// platform does, and minting the short-lived JWT the SQL API expects.
package keypair

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNotAPrivateKey = errors.New("not an RSA private key")

// Load reads a PEM-encoded RSA private key (PKCS#8 or PKCS#1) from path.
//
// Encrypted keys are not supported; decrypt them before handing them to
// this tool, as the vendor CLI requires anyway.
func Load(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	blk, _ := pem.Decode(raw)
	if blk == nil {
		return nil, fmt.Errorf("%w: %s has no PEM block", ErrNotAPrivateKey, path)
	}

	if key, err := x509.ParsePKCS8PrivateKey(blk.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotAPrivateKey, path)
		}
		return rsaKey, nil
	}

	if key, err := x509.ParsePKCS1PrivateKey(blk.Bytes); err == nil {
		return key, nil
	}

	return nil, fmt.Errorf("%w: cannot parse %s", ErrNotAPrivateKey, path)
}

// Fingerprint returns the platform's fingerprint form of the public key:
// "SHA256:" + standard base64 of the SHA-256 of the PKIX DER encoding.
func Fingerprint(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(der)
	return "SHA256:" + base64.StdEncoding.EncodeToString(sum[:]), nil
}

// Token mints a KEYPAIR_JWT for the given account and user.
//
// Claims follow the documented scheme:
//
//	iss: <ACCOUNT>.<USER>.<fingerprint>
//	sub: <ACCOUNT>.<USER>
//
// where ACCOUNT is the account identifier without a region part, uppercased.
func Token(key *rsa.PrivateKey, account, user string, lifetime time.Duration) (string, error) {
	if lifetime <= 0 {
		lifetime = 1 * time.Hour
	}
	fp, err := Fingerprint(&key.PublicKey)
	if err != nil {
		return "", err
	}

	subject := qualifiedUser(account, user)
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss": subject + "." + fp,
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(lifetime).Unix(),
	})
	return tok.SignedString(key)
}

func qualifiedUser(account, user string) string {
	acct := account
	if i := strings.IndexByte(acct, '.'); 0 <= i {
		acct = acct[:i]
	}
	return strings.ToUpper(acct) + "." + strings.ToUpper(user)
}
