package main

import (
	"crypto/ecdh"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"flag"
	"fmt"
	"log"
	"os"
)

func saveRSAPriv(path string, key *rsa.PrivateKey) error {
	b := x509.MarshalPKCS1PrivateKey(key)
	pemData := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: b})
	return os.WriteFile(path, pemData, 0600)
}

func saveRSAPub(path string, key *rsa.PublicKey) error {
	b := x509.MarshalPKCS1PublicKey(key)
	pemData := pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: b})
	return os.WriteFile(path, pemData, 0644)
}

// saveX25519Priv writes a raw 32-byte X25519 scalar, hex-encoded; there's
// no standard PEM block for raw X25519 keys, so this mirrors how
// crypto_service.go already carries them as []byte rather than forcing a
// PKIX wrapper on a key type that doesn't have one.
func saveX25519Priv(path string, key *ecdh.PrivateKey) error {
	return os.WriteFile(path, []byte(hex.EncodeToString(key.Bytes())), 0600)
}

func saveX25519Pub(path string, key *ecdh.PublicKey) error {
	return os.WriteFile(path, []byte(hex.EncodeToString(key.Bytes())), 0644)
}

func main() {
	out := flag.String("out", "rsa_key.pem", "output RSA private key file (identity key)")
	x25519Out := flag.String("x25519-out", "", "output X25519 private key file (circuit handshake key); defaults to <out>.x25519")
	flag.Parse()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		log.Fatal(err)
	}
	if err := saveRSAPriv(*out, key); err != nil {
		log.Fatal(err)
	}
	pubOut := *out + ".pub"
	if err := saveRSAPub(pubOut, &key.PublicKey); err != nil {
		log.Fatal(err)
	}
	fmt.Println("generated", *out, "and", pubOut)

	xPath := *x25519Out
	if xPath == "" {
		xPath = *out + ".x25519"
	}
	xKey, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		log.Fatal(err)
	}
	if err := saveX25519Priv(xPath, xKey); err != nil {
		log.Fatal(err)
	}
	xPubOut := xPath + ".pub"
	if err := saveX25519Pub(xPubOut, xKey.PublicKey()); err != nil {
		log.Fatal(err)
	}
	fmt.Println("generated", xPath, "and", xPubOut)
}
