// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package server

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"
)

func selfSignedDER(t *testing.T, notBefore, notAfter time.Time) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test"},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	return der
}

func TestMemoryCertificateGroupRejectsUntrusted(t *testing.T) {
	g := NewMemoryCertificateGroup()
	der := selfSignedDER(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))

	if err := g.Verify(der); err == nil {
		t.Fatal("Verify should reject a certificate with no trust entry and no issuer")
	}
}

func TestMemoryCertificateGroupTrusts(t *testing.T) {
	g := NewMemoryCertificateGroup()
	der := selfSignedDER(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	g.Trust(der)

	if err := g.Verify(der); err != nil {
		t.Fatalf("Verify of trusted cert: %v", err)
	}
}

func TestMemoryCertificateGroupRevokedOverridesTrust(t *testing.T) {
	g := NewMemoryCertificateGroup()
	der := selfSignedDER(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	g.Trust(der)
	g.Revoke(der)

	if err := g.Verify(der); err == nil {
		t.Fatal("Verify should reject a revoked certificate even if also trusted")
	}
}

func TestMemoryCertificateGroupExpired(t *testing.T) {
	g := NewMemoryCertificateGroup()
	der := selfSignedDER(t, time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour))
	g.Trust(der)

	if err := g.Verify(der); err == nil {
		t.Fatal("Verify should reject an expired certificate even if trusted")
	}
}

func TestMemoryCertificateGroupChainedIssuer(t *testing.T) {
	g := NewMemoryCertificateGroup()
	der := selfSignedDER(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err := g.AddIssuer(der); err != nil {
		t.Fatalf("AddIssuer: %v", err)
	}

	if err := g.Verify(der); err != nil {
		t.Fatalf("Verify of self-signed cert added as issuer: %v", err)
	}
}

func TestDirectoryCertificateGroupLoadIsNoop(t *testing.T) {
	g := NewDirectoryCertificateGroup("/tmp/trust", "/tmp/issuer", "/tmp/revocation")
	if err := g.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	der := selfSignedDER(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err := g.Verify(der); err == nil {
		t.Fatal("an unloaded directory group should still default-deny")
	}
}
