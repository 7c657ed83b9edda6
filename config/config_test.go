// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsOnly(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ApplicationDescription.ApplicationType != ApplicationServer {
		t.Errorf("ApplicationType = %v, want %v", cfg.ApplicationDescription.ApplicationType, ApplicationServer)
	}
	if len(cfg.ServerURLs) == 0 {
		t.Fatal("ServerURLs should default to a non-empty list")
	}
	if cfg.MaxSessionTimeout != 10*time.Minute {
		t.Errorf("MaxSessionTimeout = %v, want 10m", cfg.MaxSessionTimeout)
	}
	if cfg.Limits.MaxNodesPerRead != 1000 {
		t.Errorf("MaxNodesPerRead = %d, want 1000", cfg.Limits.MaxNodesPerRead)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.json5")
	doc := `{
  // trailing comma and comments are JSON5, not JSON
  applicationDescription: {
    applicationUri: "urn:test:server",
    applicationType: "ClientAndServer",
  },
  serverUrls: ["opc.tcp://127.0.0.1:4841"],
  maxSessionTimeout: 5000,
  limits: { maxNodesPerRead: 50 },
}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ApplicationDescription.ApplicationURI != "urn:test:server" {
		t.Errorf("ApplicationURI = %q, want urn:test:server", cfg.ApplicationDescription.ApplicationURI)
	}
	if cfg.ApplicationDescription.ApplicationType != ApplicationClientAndServer {
		t.Errorf("ApplicationType = %v, want ClientAndServer", cfg.ApplicationDescription.ApplicationType)
	}
	if len(cfg.ServerURLs) != 1 || cfg.ServerURLs[0] != "opc.tcp://127.0.0.1:4841" {
		t.Errorf("ServerURLs = %v, want [opc.tcp://127.0.0.1:4841]", cfg.ServerURLs)
	}
	if cfg.MaxSessionTimeout != 5*time.Second {
		t.Errorf("MaxSessionTimeout = %v, want 5s", cfg.MaxSessionTimeout)
	}
	if cfg.Limits.MaxNodesPerRead != 50 {
		t.Errorf("MaxNodesPerRead = %d, want 50", cfg.Limits.MaxNodesPerRead)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Limits.MaxNodesPerWrite != 1000 {
		t.Errorf("MaxNodesPerWrite = %d, want default 1000", cfg.Limits.MaxNodesPerWrite)
	}
}

func TestLoadRejectsInvalidApplicationType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.json5")
	doc := `{applicationDescription: {applicationType: "NotARealType"}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path, nil); err == nil {
		t.Fatal("Load should reject an invalid applicationType")
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json5"), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ApplicationDescription.ApplicationType != ApplicationServer {
		t.Errorf("ApplicationType = %v, want default Server", cfg.ApplicationDescription.ApplicationType)
	}
}

func TestToServerConfigMapsSecurityPolicy(t *testing.T) {
	cfg := Default()
	cfg.SecurityPolicies = []SecurityPolicyConfig{
		{Policy: "http://opcfoundation.org/UA/SecurityPolicy/Basic256Sha256", CertificateFile: "cert.der", PrivateKeyFile: "key.pem"},
	}
	sc := cfg.ToServerConfig()
	if string(sc.SecurityPolicy) != cfg.SecurityPolicies[0].Policy {
		t.Errorf("SecurityPolicy = %q, want %q", sc.SecurityPolicy, cfg.SecurityPolicies[0].Policy)
	}
}

func TestDecodeJSON5FileNestedArrays(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.json5")
	doc := `{
  securityPolicies: [
    { policy: "none", certificate: "a.der", privateKey: "a.pem" },
    { policy: "sign", certificate: "b.der", privateKey: "b.pem" },
  ],
}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	m, err := decodeJSON5File(path)
	if err != nil {
		t.Fatalf("decodeJSON5File: %v", err)
	}
	policies, ok := m["securityPolicies"].([]interface{})
	if !ok || len(policies) != 2 {
		t.Fatalf("securityPolicies = %#v, want a 2-element slice", m["securityPolicies"])
	}
	first, ok := policies[0].(map[string]interface{})
	if !ok || first["policy"] != "none" {
		t.Fatalf("policies[0] = %#v, want policy=none", policies[0])
	}
}
