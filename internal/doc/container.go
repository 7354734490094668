/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package doc

import (
	"archive/zip"
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// Encrypted container layout: magic, scrypt salt, GCM nonce, ciphertext over
// a zip archive of the page images.
var containerMagic = []byte("LEKTRAC1")

const (
	containerSaltLen  = 16
	containerNonceLen = 12
	scryptN           = 1 << 15
	scryptR           = 8
	scryptP           = 1
)

// ErrWrongPassword reports an authentication failure on an encrypted container.
var ErrWrongPassword = errors.New("wrong password")

// ErrPasswordRequired reports that the file is encrypted and no password was given.
var ErrPasswordRequired = errors.New("password required")

func deriveKey(password string, salt []byte) ([]byte, error) {
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, 32)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// IsEncrypted reports whether the file at path is an encrypted container.
func IsEncrypted(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()
	head := make([]byte, len(containerMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return bytes.Equal(head, containerMagic)
}

// sealContainer encrypts payload with the password and writes the container file.
func sealContainer(path string, payload []byte, password string) error {
	salt := make([]byte, containerSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("salt: %w", err)
	}
	key, err := deriveKey(password, salt)
	if err != nil {
		return err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return err
	}
	nonce := make([]byte, containerNonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("nonce: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, payload, containerMagic)

	var buf bytes.Buffer
	buf.Write(containerMagic)
	buf.Write(salt)
	buf.Write(nonce)
	buf.Write(sealed)
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write container: %w", err)
	}
	return nil
}

// openContainer reads and decrypts a container file into the zip payload.
func openContainer(path, password string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read container: %w", err)
	}
	minLen := len(containerMagic) + containerSaltLen + containerNonceLen + 1
	if len(data) < minLen || !bytes.Equal(data[:len(containerMagic)], containerMagic) {
		return nil, fmt.Errorf("not an encrypted container: %s", path)
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}
	off := len(containerMagic)
	salt := data[off : off+containerSaltLen]
	off += containerSaltLen
	nonce := data[off : off+containerNonceLen]
	off += containerNonceLen

	key, err := deriveKey(password, salt)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	payload, err := gcm.Open(nil, nonce, data[off:], containerMagic)
	if err != nil {
		return nil, ErrWrongPassword
	}
	return payload, nil
}

// zipDirectory packs every regular file of dir (flat) into a zip payload.
func zipDirectory(dir string) ([]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		src, err := os.Open(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		w, err := zw.Create(e.Name())
		if err == nil {
			_, err = io.Copy(w, src)
		}
		_ = src.Close()
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", e.Name(), err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encrypt packs the document source (directory or archive) into an encrypted
// container at dstPath. The original file is left in place.
func Encrypt(srcPath, dstPath, password string) error {
	if password == "" {
		return errors.New("password must not be empty")
	}
	info, err := os.Stat(srcPath)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	var payload []byte
	if info.IsDir() {
		payload, err = zipDirectory(srcPath)
	} else {
		payload, err = os.ReadFile(srcPath)
	}
	if err != nil {
		return err
	}
	return sealContainer(dstPath, payload, password)
}

// Decrypt unpacks an encrypted container back into a plain archive at dstPath.
func Decrypt(srcPath, dstPath, password string) error {
	payload, err := openContainer(srcPath, password)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dstPath, payload, 0o644); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}
	return nil
}

// Open opens a document at path. Supported sources: a directory of page
// images, a zip/cbz archive, or an encrypted container. The status reports
// the password handshake outcome; Model is non-nil only for OpenReady.
func Open(path, password string) (Model, OpenStatus, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, OpenFailed, fmt.Errorf("stat: %w", err)
	}
	if info.IsDir() {
		d, err := openDir(path)
		if err != nil {
			return nil, OpenFailed, err
		}
		return d, OpenReady, nil
	}

	if IsEncrypted(path) {
		payload, err := openContainer(path, password)
		switch {
		case errors.Is(err, ErrPasswordRequired):
			return nil, OpenPasswordRequired, err
		case errors.Is(err, ErrWrongPassword):
			return nil, OpenWrongPassword, err
		case err != nil:
			return nil, OpenFailed, err
		}
		zr, err := zipReaderAt(payload)
		if err != nil {
			return nil, OpenFailed, fmt.Errorf("container payload: %w", err)
		}
		d, err := openZipReader(path, zr, nil)
		if err != nil {
			return nil, OpenFailed, err
		}
		return d, OpenReady, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip", ".cbz":
		rc, err := zip.OpenReader(path)
		if err != nil {
			return nil, OpenFailed, fmt.Errorf("open archive: %w", err)
		}
		d, err := openZipReader(path, &rc.Reader, rc)
		if err != nil {
			_ = rc.Close()
			return nil, OpenFailed, err
		}
		return d, OpenReady, nil
	}
	return nil, OpenFailed, fmt.Errorf("unsupported document type: %s", path)
}
