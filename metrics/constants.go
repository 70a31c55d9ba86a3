package metrics

const (
	DefaultPrometheusPath = "/metrics"

	CryptoProviderPrefix = "crypto_provider_"

	// Envelope encryption metrics
	EncryptLatency  = CryptoProviderPrefix + "encrypt_latency"
	EncryptRequests = CryptoProviderPrefix + "encrypt_requests"
	EncryptErrors   = CryptoProviderPrefix + "encrypt_errors"
	EncryptSuccess  = CryptoProviderPrefix + "encrypt_success"

	// Envelope decryption metrics
	DecryptLatency  = CryptoProviderPrefix + "decrypt_latency"
	DecryptRequests = CryptoProviderPrefix + "decrypt_requests"
	DecryptErrors   = CryptoProviderPrefix + "decrypt_errors"
	DecryptSuccess  = CryptoProviderPrefix + "decrypt_success"

	// Materials manager get metrics
	MaterialsManagerGetLatency  = CryptoProviderPrefix + "materials_manager_get_latency"
	MaterialsManagerGetRequests = CryptoProviderPrefix + "materials_manager_get_requests"
	MaterialsManagerGetErrors   = CryptoProviderPrefix + "materials_manager_get_errors"
	MaterialsManagerGetSuccess  = CryptoProviderPrefix + "materials_manager_get_success"

	// Materials manager decrypt metrics
	MaterialsManagerDecryptLatency  = CryptoProviderPrefix + "materials_manager_decrypt_latency"
	MaterialsManagerDecryptRequests = CryptoProviderPrefix + "materials_manager_decrypt_requests"
	MaterialsManagerDecryptErrors   = CryptoProviderPrefix + "materials_manager_decrypt_errors"
	MaterialsManagerDecryptSuccess  = CryptoProviderPrefix + "materials_manager_decrypt_success"

	// Materials cache metrics
	MaterialsCacheHits      = CryptoProviderPrefix + "materials_cache_hits"
	MaterialsCacheMisses    = CryptoProviderPrefix + "materials_cache_misses"
	MaterialsCacheEvictions = CryptoProviderPrefix + "materials_cache_evictions"

	// Self test metrics
	SelfTestLatency  = CryptoProviderPrefix + "selftest_latency"
	SelfTestFailures = CryptoProviderPrefix + "selftest_failures"
)
