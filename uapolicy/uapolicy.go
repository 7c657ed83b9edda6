// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

// Package uapolicy implements the SecurityPolicy suites a SecureChannel
// negotiates during Open (spec.md §4.4): asymmetric sign/verify/encrypt/
// decrypt for the handshake, symmetric sign/verify/encrypt/decrypt for
// ordinary chunks once keys are derived, and the P_SHA256 key derivation
// function both sides run off the exchanged nonces. Grounded on the
// vendored gopcua/opcua uasc.SecureChannel's use of uapolicy.Asymmetric /
// uapolicy.Symmetric / uapolicy.EncryptionAlgorithm, it builds directly on
// crypto/rsa, crypto/aes, crypto/sha256 and crypto/x509 the way that
// package does, supplemented by golang.org/x/crypto for the PBKDF2
// key-stretching helper StretchPassword.
package uapolicy

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"hash"

	"github.com/open62541/open62541-sub001/errors"
	"golang.org/x/crypto/pbkdf2"
)

// URI identifies a SecurityPolicy by its Part 7 namespace-qualified name,
// the same string ApplicationDescription/EndpointDescription carry on the
// wire.
type URI string

const (
	None                URI = "http://opcfoundation.org/UA/SecurityPolicy#None"
	Basic128Rsa15       URI = "http://opcfoundation.org/UA/SecurityPolicy#Basic128Rsa15"
	Basic256            URI = "http://opcfoundation.org/UA/SecurityPolicy#Basic256"
	Basic256Sha256      URI = "http://opcfoundation.org/UA/SecurityPolicy#Basic256Sha256"
	Aes128Sha256RsaOaep URI = "http://opcfoundation.org/UA/SecurityPolicy#Aes128_Sha256_RsaOaep"
	Aes256Sha256RsaPss  URI = "http://opcfoundation.org/UA/SecurityPolicy#Aes256_Sha256_RsaPss"
)

// EncryptionAlgorithm names the symmetric cipher a policy's symmetric
// module uses, which in turn fixes the key length P_SHA256 must derive
// (spec.md §4.4).
type EncryptionAlgorithm string

const (
	NoEncryption EncryptionAlgorithm = ""
	AES128CBC    EncryptionAlgorithm = "AES128CBC"
	AES256CBC    EncryptionAlgorithm = "AES256CBC"
)

// KeyLength returns the symmetric encryption key length in bytes.
func (a EncryptionAlgorithm) KeyLength() int {
	switch a {
	case AES128CBC:
		return 16
	case AES256CBC:
		return 32
	default:
		return 0
	}
}

// BlockSize returns the cipher block size, used both as the IV length and
// as the chunk padding granularity (spec.md §4.4).
func (a EncryptionAlgorithm) BlockSize() int {
	switch a {
	case AES128CBC, AES256CBC:
		return aes.BlockSize
	default:
		return 1
	}
}

// Policy bundles the asymmetric and symmetric crypto operations negotiated
// for one SecureChannel security mode, plus the parameters key derivation
// needs (spec.md §4.4). The zero-value-shaped None policy leaves every
// func field nil; callers must check URI == None before invoking them.
type Policy struct {
	URI URI

	HashAlgorithm       func() hash.Hash
	SignatureHash       crypto.Hash
	EncryptionAlgorithm EncryptionAlgorithm
	SignatureKeyLength  int

	asymEncrypt func(pub *rsa.PublicKey, plaintext []byte) ([]byte, error)
	asymDecrypt func(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error)
	asymSign    func(priv *rsa.PrivateKey, digest []byte) ([]byte, error)
	asymVerify  func(pub *rsa.PublicKey, digest, sig []byte) error
}

// ByURI resolves a SecurityPolicy URI to its Policy, the lookup
// OpenSecureChannelRequest handling does before deriving or applying any
// keys (spec.md §4.4's "reject a RequestedSecurityPolicyUri it does not
// support" edge case).
func ByURI(uri URI) (*Policy, error) {
	switch uri {
	case None, "":
		return nonePolicy, nil
	case Basic128Rsa15:
		return basic128Rsa15Policy, nil
	case Basic256:
		return basic256Policy, nil
	case Basic256Sha256:
		return basic256Sha256Policy, nil
	case Aes128Sha256RsaOaep:
		return aes128Sha256RsaOaepPolicy, nil
	case Aes256Sha256RsaPss:
		return aes256Sha256RsaPssPolicy, nil
	default:
		return nil, errors.Errorf("uapolicy: unsupported security policy %q", uri)
	}
}

var nonePolicy = &Policy{URI: None}

var basic128Rsa15Policy = &Policy{
	URI:                 Basic128Rsa15,
	HashAlgorithm:       sha1.New,
	SignatureHash:       crypto.SHA1,
	EncryptionAlgorithm: AES128CBC,
	SignatureKeyLength:  16,
	asymEncrypt:         rsaEncryptPKCS1v15,
	asymDecrypt:         rsaDecryptPKCS1v15,
	asymSign:            rsaSignPKCS1v15(crypto.SHA1),
	asymVerify:          rsaVerifyPKCS1v15(crypto.SHA1),
}

var basic256Policy = &Policy{
	URI:                 Basic256,
	HashAlgorithm:       sha1.New,
	SignatureHash:       crypto.SHA1,
	EncryptionAlgorithm: AES256CBC,
	SignatureKeyLength:  24,
	asymEncrypt:         rsaEncryptOAEP(sha1.New),
	asymDecrypt:         rsaDecryptOAEP(sha1.New),
	asymSign:            rsaSignPKCS1v15(crypto.SHA1),
	asymVerify:          rsaVerifyPKCS1v15(crypto.SHA1),
}

var basic256Sha256Policy = &Policy{
	URI:                 Basic256Sha256,
	HashAlgorithm:       sha256.New,
	SignatureHash:       crypto.SHA256,
	EncryptionAlgorithm: AES256CBC,
	SignatureKeyLength:  32,
	asymEncrypt:         rsaEncryptOAEP(sha1.New),
	asymDecrypt:         rsaDecryptOAEP(sha1.New),
	asymSign:            rsaSignPKCS1v15(crypto.SHA256),
	asymVerify:          rsaVerifyPKCS1v15(crypto.SHA256),
}

var aes128Sha256RsaOaepPolicy = &Policy{
	URI:                 Aes128Sha256RsaOaep,
	HashAlgorithm:       sha256.New,
	SignatureHash:       crypto.SHA256,
	EncryptionAlgorithm: AES128CBC,
	SignatureKeyLength:  32,
	asymEncrypt:         rsaEncryptOAEP(sha1.New),
	asymDecrypt:         rsaDecryptOAEP(sha1.New),
	asymSign:            rsaSignPKCS1v15(crypto.SHA256),
	asymVerify:          rsaVerifyPKCS1v15(crypto.SHA256),
}

var aes256Sha256RsaPssPolicy = &Policy{
	URI:                 Aes256Sha256RsaPss,
	HashAlgorithm:       sha256.New,
	SignatureHash:       crypto.SHA256,
	EncryptionAlgorithm: AES256CBC,
	SignatureKeyLength:  32,
	asymEncrypt:         rsaEncryptOAEP(sha256.New),
	asymDecrypt:         rsaDecryptOAEP(sha256.New),
	asymSign:            rsaSignPSS(crypto.SHA256),
	asymVerify:          rsaVerifyPSS(crypto.SHA256),
}

func rsaEncryptPKCS1v15(pub *rsa.PublicKey, plaintext []byte) ([]byte, error) {
	return rsa.EncryptPKCS1v15(rand.Reader, pub, plaintext)
}

func rsaDecryptPKCS1v15(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	return rsa.DecryptPKCS1v15(rand.Reader, priv, ciphertext)
}

func rsaEncryptOAEP(newHash func() hash.Hash) func(*rsa.PublicKey, []byte) ([]byte, error) {
	return func(pub *rsa.PublicKey, plaintext []byte) ([]byte, error) {
		return rsa.EncryptOAEP(newHash(), rand.Reader, pub, plaintext, nil)
	}
}

func rsaDecryptOAEP(newHash func() hash.Hash) func(*rsa.PrivateKey, []byte) ([]byte, error) {
	return func(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
		return rsa.DecryptOAEP(newHash(), rand.Reader, priv, ciphertext, nil)
	}
}

func rsaSignPKCS1v15(h crypto.Hash) func(*rsa.PrivateKey, []byte) ([]byte, error) {
	return func(priv *rsa.PrivateKey, data []byte) ([]byte, error) {
		digest := hashSum(h, data)
		return rsa.SignPKCS1v15(rand.Reader, priv, h, digest)
	}
}

func rsaVerifyPKCS1v15(h crypto.Hash) func(*rsa.PublicKey, []byte, []byte) error {
	return func(pub *rsa.PublicKey, data, sig []byte) error {
		digest := hashSum(h, data)
		if err := rsa.VerifyPKCS1v15(pub, h, digest, sig); err != nil {
			return errors.Wrap(StatusBadSecurityChecksFailed, "pkcs1v15 signature verify")
		}
		return nil
	}
}

func rsaSignPSS(h crypto.Hash) func(*rsa.PrivateKey, []byte) ([]byte, error) {
	return func(priv *rsa.PrivateKey, data []byte) ([]byte, error) {
		digest := hashSum(h, data)
		return rsa.SignPSS(rand.Reader, priv, h, digest, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: h})
	}
}

func rsaVerifyPSS(h crypto.Hash) func(*rsa.PublicKey, []byte, []byte) error {
	return func(pub *rsa.PublicKey, data, sig []byte) error {
		digest := hashSum(h, data)
		if err := rsa.VerifyPSS(pub, h, digest, sig, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: h}); err != nil {
			return errors.Wrap(StatusBadSecurityChecksFailed, "pss signature verify")
		}
		return nil
	}
}

func hashSum(h crypto.Hash, data []byte) []byte {
	hh := h.New()
	hh.Write(data)
	return hh.Sum(nil)
}

// StatusBadSecurityChecksFailed is this package's own error for failed
// security checks, named after ua.StatusBadSecurityChecksFailed; it is a
// plain error value, not a ua.StatusCode.
var StatusBadSecurityChecksFailed = errors.New("uapolicy: security checks failed")

// AsymmetricPlaintextBlockSize returns the maximum plaintext length one
// RSA block can carry for pub, accounting for the scheme's padding
// overhead (11 bytes for PKCS1v15, 2*hashLen+2 for OAEP), the figure the
// SecureChannel asymmetric chunker splits ExpandedNonce/OpenRequest
// bodies by (spec.md §4.4).
func (p *Policy) AsymmetricPlaintextBlockSize(pub *rsa.PublicKey) int {
	keyBytes := pub.Size()
	switch p.URI {
	case Basic128Rsa15:
		return keyBytes - 11
	case None:
		return keyBytes
	default:
		hashLen := p.SignatureHash.Size()
		return keyBytes - 2*hashLen - 2
	}
}

// AsymmetricCiphertextBlockSize is always the RSA modulus size in bytes.
func (p *Policy) AsymmetricCiphertextBlockSize(pub *rsa.PublicKey) int {
	return pub.Size()
}

// AsymmetricSignatureSize is the RSA modulus size in bytes, the signature
// trailer length every asymmetrically-secured chunk carries.
func (p *Policy) AsymmetricSignatureSize(priv *rsa.PrivateKey) int {
	return priv.Size()
}

// AsymmetricEncrypt RSA-encrypts plaintext (already split to fit one
// block) to pub under the policy's padding scheme.
func (p *Policy) AsymmetricEncrypt(pub *rsa.PublicKey, plaintext []byte) ([]byte, error) {
	if p.asymEncrypt == nil {
		return plaintext, nil
	}
	return p.asymEncrypt(pub, plaintext)
}

// AsymmetricDecrypt is the inverse of AsymmetricEncrypt.
func (p *Policy) AsymmetricDecrypt(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	if p.asymDecrypt == nil {
		return ciphertext, nil
	}
	return p.asymDecrypt(priv, ciphertext)
}

// AsymmetricSign signs data with priv under the policy's signature scheme.
func (p *Policy) AsymmetricSign(priv *rsa.PrivateKey, data []byte) ([]byte, error) {
	if p.asymSign == nil {
		return nil, nil
	}
	return p.asymSign(priv, data)
}

// AsymmetricVerify checks sig over data against pub.
func (p *Policy) AsymmetricVerify(pub *rsa.PublicKey, data, sig []byte) error {
	if p.asymVerify == nil {
		return nil
	}
	return p.asymVerify(pub, data, sig)
}

// SymmetricKeys holds the signing/encryption key and IV derived for one
// direction (client-to-server or server-to-client) of one channel security
// token (spec.md §4.4).
type SymmetricKeys struct {
	SigningKey    []byte
	EncryptionKey []byte
	IV            []byte
}

// DeriveKeys runs the P_SHA256 (or, for the SHA1 suites, P_SHA1) key
// derivation function over secret/seed, the nonce pair exchanged in
// Open/Renew, producing the signing key, encryption key and IV a
// direction's Symmetric module needs. Grounded on the "2.4 Deriving Keys"
// pattern the vendored secure_channel.go delegates to uapolicy.Symmetric;
// this stack inlines the HMAC-based PRF directly since there is no
// separate Symmetric type to own it.
func (p *Policy) DeriveKeys(secret, seed []byte) SymmetricKeys {
	if p.URI == None {
		return SymmetricKeys{}
	}
	sigLen := p.SignatureKeyLength
	encLen := p.EncryptionAlgorithm.KeyLength()
	ivLen := p.EncryptionAlgorithm.BlockSize()
	out := pSHA(p.HashAlgorithm, secret, seed, sigLen+encLen+ivLen)
	return SymmetricKeys{
		SigningKey:    out[:sigLen],
		EncryptionKey: out[sigLen : sigLen+encLen],
		IV:            out[sigLen+encLen : sigLen+encLen+ivLen],
	}
}

// pSHA implements the TLS-1.x-style P_hash PRF (RFC 5246 §5), the
// construction Part 6 §6.7.5 of the OPC UA spec names P_SHA1/P_SHA256:
// repeated HMAC(secret, A(i) || seed) chained through A(i) = HMAC(secret,
// A(i-1)), truncated to length bytes.
func pSHA(newHash func() hash.Hash, secret, seed []byte, length int) []byte {
	mac := hmac.New(newHash, secret)
	a := seed
	var out []byte
	for len(out) < length {
		mac.Reset()
		mac.Write(a)
		a = mac.Sum(nil)

		mac.Reset()
		mac.Write(a)
		mac.Write(seed)
		out = append(out, mac.Sum(nil)...)
	}
	return out[:length]
}

// SymmetricSign HMACs data with key under the policy's hash.
func (p *Policy) SymmetricSign(key, data []byte) []byte {
	if p.HashAlgorithm == nil {
		return nil
	}
	mac := hmac.New(p.HashAlgorithm, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// SymmetricVerify recomputes the HMAC over data and compares in constant
// time against sig.
func (p *Policy) SymmetricVerify(key, data, sig []byte) error {
	want := p.SymmetricSign(key, data)
	if !hmac.Equal(want, sig) {
		return errors.Wrap(StatusBadSecurityChecksFailed, "symmetric signature verify")
	}
	return nil
}

// SymmetricEncrypt AES-CBC encrypts plaintext (already padded to a block
// multiple) under key/iv.
func (p *Policy) SymmetricEncrypt(key, iv, plaintext []byte) ([]byte, error) {
	if p.EncryptionAlgorithm == NoEncryption {
		return plaintext, nil
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "uapolicy: new aes cipher")
	}
	if len(plaintext)%block.BlockSize() != 0 {
		return nil, errors.New("uapolicy: plaintext is not a block multiple")
	}
	out := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, plaintext)
	return out, nil
}

// SymmetricDecrypt is the inverse of SymmetricEncrypt.
func (p *Policy) SymmetricDecrypt(key, iv, ciphertext []byte) ([]byte, error) {
	if p.EncryptionAlgorithm == NoEncryption {
		return ciphertext, nil
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "uapolicy: new aes cipher")
	}
	if len(ciphertext)%block.BlockSize() != 0 {
		return nil, errors.Wrap(StatusBadSecurityChecksFailed, "ciphertext is not a block multiple")
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return out, nil
}

// CertificateThumbprint returns the SHA1 digest of a DER certificate, the
// form a SenderCertificate/ReceiverCertificateThumbprint asymmetric header
// field carries (spec.md §4.4).
func CertificateThumbprint(der []byte) [20]byte {
	return sha1.Sum(der)
}

// ParseCertificate parses a DER-encoded X.509 certificate, used to pull
// the remote RSA public key out of an asymmetric header's
// SenderCertificate field.
func ParseCertificate(der []byte) (*x509.Certificate, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, errors.Wrap(err, "uapolicy: parse certificate")
	}
	return cert, nil
}

// StretchPassword derives a fixed-length key from a low-entropy passphrase
// using PBKDF2-HMAC-SHA256 with 4096 iterations (golang.org/x/crypto's
// pbkdf2 package). No configuration option or other code in this module
// calls it.
func StretchPassword(passphrase, salt []byte, keyLen int) []byte {
	return pbkdf2.Key(passphrase, salt, 4096, keyLen, sha256.New)
}
