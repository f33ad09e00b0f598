package main

import (
	"encoding/base64"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/doodlesbykumbi/membership-gateway/pkg/db"
	"github.com/doodlesbykumbi/membership-gateway/pkg/sealed"
)

const (
	dataKeyEnv       = "MEMBERSHIP_DATA_KEY"
	sessionSecretEnv = "MEMBERSHIP_SESSION_SECRET"
)

// dataKeyCipher builds the seed sealing cipher from MEMBERSHIP_DATA_KEY.
func dataKeyCipher() (*sealed.AESGCM, error) {
	dataKeyB64, ok := os.LookupEnv(dataKeyEnv)
	if !ok {
		return nil, fmt.Errorf("%s environment variable is required", dataKeyEnv)
	}
	dataKey, err := base64.StdEncoding.DecodeString(dataKeyB64)
	if err != nil {
		return nil, fmt.Errorf("bad %s: %w", dataKeyEnv, err)
	}
	cipher, err := sealed.New(dataKey)
	if err != nil {
		return nil, fmt.Errorf("unable to initiate cipher: %w", err)
	}
	return cipher, nil
}

// openDatabase connects to DATABASE_URL with the data-key cipher attached.
func openDatabase(debug bool) (*gorm.DB, *sealed.AESGCM, error) {
	if db.URL() == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	cipher, err := dataKeyCipher()
	if err != nil {
		return nil, nil, err
	}
	gdb, err := db.Connect(db.Config{Cipher: cipher, Debug: debug})
	if err != nil {
		return nil, nil, err
	}
	return gdb, cipher, nil
}
