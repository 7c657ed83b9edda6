// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/open62541/open62541-sub001/config"
	"github.com/open62541/open62541-sub001/debug"
	"github.com/open62541/open62541-sub001/server"
)

var (
	metricsAddr string
	listenAddr  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the OPC UA server and block until interrupted",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (empty disables metrics)")
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "TCP address to listen on, overriding the first serverUrls entry")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, newViper(cmd))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := debug.New(slog.Default())
	sc := cfg.ToServerConfig()
	sc.Logger = logger

	if len(cfg.SecurityPolicies) > 0 {
		cert, key, err := loadCertificateAndKey(cfg.SecurityPolicies[0])
		if err != nil {
			return fmt.Errorf("loading server certificate: %w", err)
		}
		sc.Certificate = cert
		sc.PrivateKey = key
	}

	pki := server.NewDirectoryCertificateGroup(
		cfg.SecureChannelPKI.TrustListFolder,
		cfg.SecureChannelPKI.IssuerListFolder,
		cfg.SecureChannelPKI.RevocationListFolder,
	)
	if err := pki.Load(); err != nil {
		return fmt.Errorf("loading secure channel PKI: %w", err)
	}
	sc.SecureChannelPKI = pki

	var reg *prometheus.Registry
	if metricsAddr != "" {
		reg = prometheus.NewRegistry()
		sc.Metrics = server.NewMetrics(reg)
	}

	if bridge := cfg.ToPubSubBridge(); bridge != nil {
		sc.PubSub = bridge
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if sc.PubSub != nil {
		go func() {
			if err := sc.PubSub.Start(ctx); err != nil {
				logger.Printf("pubsub bridge stopped: %v", err)
			}
		}()
	}

	if reg != nil {
		go serveMetrics(ctx, reg)
	}

	addr := listenAddr
	if addr == "" && len(cfg.ServerURLs) > 0 {
		addr = endpointAddr(cfg.ServerURLs[0])
	}
	if addr == "" {
		addr = "0.0.0.0:4840"
	}

	srv := server.NewServer(sc, server.NewNodestore(time.Now))
	logger.Printf("uaserver: listening on %s", addr)
	return srv.ListenAndServe(ctx, addr)
}

// endpointAddr strips an opc.tcp:// endpoint URL's scheme, leaving the
// host:port net.Listen expects.
func endpointAddr(endpointURL string) string {
	const scheme = "opc.tcp://"
	if len(endpointURL) > len(scheme) && endpointURL[:len(scheme)] == scheme {
		return endpointURL[len(scheme):]
	}
	return endpointURL
}

func serveMetrics(ctx context.Context, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	httpSrv := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()
	_ = httpSrv.ListenAndServe()
}

// loadCertificateAndKey reads the DER-encoded certificate and PEM-or-DER
// RSA private key named by sp, the way a SecurityPolicyConfig entry names
// them in spec.md §6's `securityPolicies` key.
func loadCertificateAndKey(sp config.SecurityPolicyConfig) ([]byte, *rsa.PrivateKey, error) {
	cert, err := os.ReadFile(sp.CertificateFile)
	if err != nil {
		return nil, nil, fmt.Errorf("reading certificate: %w", err)
	}
	if block, _ := pem.Decode(cert); block != nil {
		cert = block.Bytes
	}

	keyBytes, err := os.ReadFile(sp.PrivateKeyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("reading private key: %w", err)
	}
	key, err := parsePrivateKey(keyBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing private key: %w", err)
	}
	return cert, key, nil
}

// parsePrivateKey accepts a PEM-wrapped or raw-DER RSA key in either
// PKCS#1 or PKCS#8 form, matching the handful of formats openssl commonly
// produces for a server private key.
func parsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	der := data
	if block, _ := pem.Decode(data); block != nil {
		der = block.Bytes
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return rsaKey, nil
}
