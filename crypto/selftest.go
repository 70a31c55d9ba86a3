package crypto

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"temporal-sa/crypto-provider/algcache"
	"temporal-sa/crypto-provider/engine"
	"temporal-sa/crypto-provider/metrics"
)

// SelfTestResult is the outcome of a single known-answer test.
type SelfTestResult struct {
	Name     string
	Duration time.Duration
	Err      error
}

type knownAnswer struct {
	name string
	run  func(cache *algcache.Cache) error
}

var knownAnswers = []knownAnswer{
	{"SHA1", digestKAT(engine.AlgSHA1, "abc", "a9993e364706816aba3e25717850c26c9cd0d89d")},
	{"SHA256", digestKAT(engine.AlgSHA256, "abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad")},
	{"SHA512", digestKAT(engine.AlgSHA512, "abc", "ddaf35a193617abacc417349ae20413112e6fa4e89a97ea20a9eeee64b55d39a2192992a274fc1a836ba3c23a3feebbd454d4423643ce80e2a9ac94fa54ca49f")},
	{"SHA3-256", digestKAT(engine.AlgSHA3_256, "abc", "3a985da74fe225b2045c172d6bd390bd855f086e3e9d525b46bfe24511431532")},
	{"HMAC-SHA256", hmacKAT(engine.AlgSHA256, "Jefe", "what do ya want for nothing?", "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843")},
	{"AES-128-ECB", cipherKAT(ModeECB, 0, "000102030405060708090a0b0c0d0e0f", "", "00112233445566778899aabbccddeeff", "69c4e0d86a7b0430d8cdb78070b4c55a")},
	{"AES-128-CBC", cipherKAT(ModeCBC, 0, "2b7e151628aed2a6abf7158809cf4f3c", "000102030405060708090a0b0c0d0e0f", "6bc1bee22e409f96e93d7e117393172a", "7649abac8119b246cee98e9b12e9197d")},
	{"AES-128-CFB8", cipherKAT(ModeCFB, 8, "2b7e151628aed2a6abf7158809cf4f3c", "000102030405060708090a0b0c0d0e0f", "6bc1bee22e409f96e93d7e117393172aae2d", "3b79424c9c0dd436bace9e0ed4586a4f32b9")},
	{"3DES-CBC", tripleDESRoundTrip},
	{"envelope", envelopeRoundTrip},
}

// RunSelfTest runs every known-answer test against the engine behind
// cache. It returns one result per test and a joined error naming the
// tests that failed.
func RunSelfTest(cache *algcache.Cache, handler client.MetricsHandler, logger *zap.Logger) ([]SelfTestResult, error) {
	if handler == nil {
		handler = client.MetricsNopHandler
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	start := time.Now()
	defer func() {
		handler.Timer(metrics.SelfTestLatency).Record(time.Since(start))
	}()

	results := make([]SelfTestResult, 0, len(knownAnswers))
	var errs []error
	for _, kat := range knownAnswers {
		began := time.Now()
		err := kat.run(cache)
		result := SelfTestResult{Name: kat.name, Duration: time.Since(began), Err: err}
		results = append(results, result)

		if err != nil {
			handler.WithTags(map[string]string{"test": kat.name}).Counter(metrics.SelfTestFailures).Inc(1)
			logger.Error("self test failed", zap.String("test", kat.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", kat.name, err))
			continue
		}
		logger.Debug("self test passed", zap.String("test", kat.name), zap.Duration("duration", result.Duration))
	}
	return results, errors.Join(errs...)
}

func digestKAT(alg, input, expected string) func(*algcache.Cache) error {
	return func(cache *algcache.Cache) error {
		digest, err := HashData(cache, alg, []byte(input))
		if err != nil {
			return err
		}
		return compareHex(digest, expected)
	}
}

func hmacKAT(alg, key, input, expected string) func(*algcache.Cache) error {
	return func(cache *algcache.Cache) error {
		mac, err := HMACData(cache, alg, []byte(key), []byte(input))
		if err != nil {
			return err
		}
		return compareHex(mac, expected)
	}
}

func cipherKAT(mode CipherMode, feedbackBits int, key, iv, plaintext, expected string) func(*algcache.Cache) error {
	return func(cache *algcache.Cache) error {
		aes, err := NewAESWithKey(cache, mustDecode(key))
		if err != nil {
			return err
		}
		defer aes.Close()

		p := transformParams{mode: mode, padding: PaddingNone, iv: mustDecode(iv), feedbackBits: feedbackBits, encrypting: true}
		ciphertext, err := aes.encrypt(p, mustDecode(plaintext))
		if err != nil {
			return err
		}
		if err := compareHex(ciphertext, expected); err != nil {
			return err
		}

		p.encrypting = false
		decrypted, err := aes.decrypt(p, ciphertext)
		if err != nil {
			return err
		}
		return compareHex(decrypted, plaintext)
	}
}

func tripleDESRoundTrip(cache *algcache.Cache) error {
	tdes, err := NewTripleDES(cache)
	if err != nil {
		return err
	}
	defer tdes.Close()

	iv := make([]byte, tdes.BlockSize())
	plaintext := []byte("known plaintext")
	ciphertext, err := tdes.EncryptCBC(plaintext, iv, PaddingPKCS7)
	if err != nil {
		return err
	}
	if bytes.Equal(ciphertext[:len(plaintext)], plaintext) {
		return errors.New("ciphertext equals plaintext")
	}
	decrypted, err := tdes.DecryptCBC(ciphertext, iv, PaddingPKCS7)
	if err != nil {
		return err
	}
	if !bytes.Equal(decrypted, plaintext) {
		return errors.New("round trip mismatch")
	}
	return nil
}

func envelopeRoundTrip(cache *algcache.Cache) error {
	dataKey := make([]byte, DataKeySize)
	for i := range dataKey {
		dataKey[i] = byte(i)
	}
	aad := []byte("selftest")
	plaintext := []byte("known plaintext")

	sealed, err := seal(cache, dataKey, plaintext, aad)
	if err != nil {
		return err
	}
	opened, err := open(cache, dataKey, sealed, aad)
	if err != nil {
		return err
	}
	if !bytes.Equal(opened, plaintext) {
		return errors.New("round trip mismatch")
	}
	if _, err := open(cache, dataKey, sealed, []byte("other")); !errors.Is(err, ErrAuthentication) {
		return fmt.Errorf("tag accepted under the wrong context: %v", err)
	}
	return nil
}

func compareHex(actual []byte, expected string) error {
	if got := hex.EncodeToString(actual); got != expected {
		return fmt.Errorf("got %s, want %s", got, expected)
	}
	return nil
}

func mustDecode(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}
