package crypto

import (
	"github.com/stretchr/testify/mock"

	"temporal-sa/crypto-provider/engine"
)

// mockEngine implements engine.Engine for testing
type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) OpenAlgorithm(name string, flags engine.OpenFlags) (engine.AlgorithmHandle, error) {
	args := m.Called(name, flags)
	return args.Get(0).(engine.AlgorithmHandle), args.Error(1)
}

func (m *mockEngine) GetProperty(alg engine.AlgorithmHandle, prop engine.Property) (int, error) {
	args := m.Called(alg, prop)
	return args.Int(0), args.Error(1)
}

func (m *mockEngine) CreateHash(alg engine.AlgorithmHandle, key []byte, flags engine.CreateHashFlags) (engine.HashHandle, error) {
	args := m.Called(alg, key, flags)
	return args.Get(0).(engine.HashHandle), args.Error(1)
}

func (m *mockEngine) HashData(h engine.HashHandle, data []byte) error {
	return m.Called(h, data).Error(0)
}

func (m *mockEngine) FinishHash(h engine.HashHandle, out []byte) error {
	return m.Called(h, out).Error(0)
}

func (m *mockEngine) DuplicateHash(h engine.HashHandle) (engine.HashHandle, error) {
	args := m.Called(h)
	return args.Get(0).(engine.HashHandle), args.Error(1)
}

func (m *mockEngine) DestroyHash(h engine.HashHandle) error {
	return m.Called(h).Error(0)
}

func (m *mockEngine) ImportKey(alg engine.AlgorithmHandle, key []byte) (engine.KeyHandle, error) {
	args := m.Called(alg, key)
	return args.Get(0).(engine.KeyHandle), args.Error(1)
}

func (m *mockEngine) OpenPersistedKey(name string) (engine.KeyHandle, error) {
	args := m.Called(name)
	return args.Get(0).(engine.KeyHandle), args.Error(1)
}

func (m *mockEngine) ExportKey(k engine.KeyHandle) ([]byte, error) {
	args := m.Called(k)
	key, _ := args.Get(0).([]byte)
	return key, args.Error(1)
}

func (m *mockEngine) Encrypt(k engine.KeyHandle, mode engine.ChainingMode, iv []byte, segmentSize int, src, dst []byte) error {
	return m.Called(k, mode, iv, segmentSize, src, dst).Error(0)
}

func (m *mockEngine) Decrypt(k engine.KeyHandle, mode engine.ChainingMode, iv []byte, segmentSize int, src, dst []byte) error {
	return m.Called(k, mode, iv, segmentSize, src, dst).Error(0)
}

func (m *mockEngine) DestroyKey(k engine.KeyHandle) error {
	return m.Called(k).Error(0)
}

// expectOpen sets up the calls algcache.Cache makes the first time an
// algorithm is requested.
func (m *mockEngine) expectOpen(name string, flags engine.OpenFlags, h engine.AlgorithmHandle, hashSize, blockSize int) {
	m.On("OpenAlgorithm", name, flags).Return(h, nil).Once()
	if hashSize > 0 {
		m.On("GetProperty", h, engine.PropertyHashLength).Return(hashSize, nil).Once()
		return
	}
	m.On("GetProperty", h, engine.PropertyHashLength).Return(0, engine.StatusNotSupported).Once()
	m.On("GetProperty", h, engine.PropertyBlockLength).Return(blockSize, nil).Once()
}
