package certs

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"net"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestGenerateDefaults(t *testing.T) {
	t.Parallel()
	cert, err := Generate(0)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	x509Cert, err := x509.ParseCertificate(cert.TLSCert.Certificate[0])
	if err != nil {
		t.Fatalf("failed to parse cert: %v", err)
	}

	validity := x509Cert.NotAfter.Sub(x509Cert.NotBefore)
	if validity != defaultValidity {
		t.Errorf("validity = %v, want %v", validity, defaultValidity)
	}
	if x509Cert.NotAfter.Before(time.Now()) {
		t.Error("cert is already expired")
	}
	if !slices.Contains(x509Cert.DNSNames, "localhost") {
		t.Errorf("DNS names %v lack localhost", x509Cert.DNSNames)
	}
	if len(x509Cert.IPAddresses) != 2 {
		t.Errorf("IP addresses = %v, want both loopbacks", x509Cert.IPAddresses)
	}

	if cert.Fingerprint != sha256.Sum256(cert.TLSCert.Certificate[0]) {
		t.Error("fingerprint mismatch")
	}
	spki, _ := x509.MarshalPKIXPublicKey(x509Cert.PublicKey)
	if cert.KeyPin != sha256.Sum256(spki) {
		t.Error("key pin mismatch")
	}
	if !strings.HasPrefix(cert.PinnedPublicKey(), "sha256//") {
		t.Errorf("PinnedPublicKey = %q", cert.PinnedPublicKey())
	}
	if cert.FingerprintBase64() == "" {
		t.Error("FingerprintBase64 returned empty string")
	}
}

func TestGenerateHosts(t *testing.T) {
	t.Parallel()
	cert, err := Generate(time.Hour, "ingest.example.com", "10.1.2.3")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	x509Cert, err := x509.ParseCertificate(cert.TLSCert.Certificate[0])
	if err != nil {
		t.Fatal(err)
	}

	if !slices.Equal(x509Cert.DNSNames, []string{"ingest.example.com"}) {
		t.Errorf("DNS names = %v", x509Cert.DNSNames)
	}
	if len(x509Cert.IPAddresses) != 1 || !x509Cert.IPAddresses[0].Equal(net.ParseIP("10.1.2.3")) {
		t.Errorf("IP addresses = %v", x509Cert.IPAddresses)
	}
	if got := x509Cert.NotAfter.Sub(x509Cert.NotBefore); got != time.Hour {
		t.Errorf("validity = %v, want 1h", got)
	}
}

func TestTLSConfigServes(t *testing.T) {
	t.Parallel()
	cert, err := Generate(time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	}))
	srv.TLS = cert.TLSConfig()
	srv.StartTLS()
	defer srv.Close()

	pool := x509.NewCertPool()
	leaf, _ := x509.ParseCertificate(cert.TLSCert.Certificate[0])
	pool.AddCert(leaf)
	client := &http.Client{Transport: &http.Transport{
		TLSClientConfig: &tls.Config{RootCAs: pool, ServerName: "127.0.0.1"},
	}}

	res, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET over pinned TLS: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Errorf("status = %d", res.StatusCode)
	}
}
