package logcolors

// ANSI color codes for log prefixes
const (
	Reset  = "\033[0m"
	Green  = "\033[32m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"
	Red    = "\033[31m"
)

// Cache-related log prefixes
const (
	LogCacheInit   = Blue + "[Cache:Init]" + Reset
	LogCache       = Blue + "[Cache]" + Reset
	LogCacheLyrics = Green + "[Cache:Lyrics]" + Reset
	LogCacheSweep  = Cyan + "[Cache:Sweep]" + Reset
	LogRevalidate  = Cyan + "[Revalidate]" + Reset
)

// Rate limiting log prefixes
const (
	LogRateLimit = Purple + "[RateLimit]" + Reset
)

// Resolver and catalog log prefixes
const (
	LogResolver  = Blue + "[Resolver]" + Reset
	LogStrategy  = Cyan + "[Strategy]" + Reset
	LogCatalog   = Cyan + "[Catalog]" + Reset
	LogSearch    = Blue + "[Search]" + Reset
	LogMatch     = Green + "[Match]" + Reset
	LogBestMatch = Green + "[Best Match]" + Reset
	LogLyrics    = Blue + "[Lyrics]" + Reset
	LogPrefetch  = Cyan + "[Prefetch]" + Reset
	LogWarning   = Red + "[Warning]" + Reset
)

// Player state store log prefixes
const (
	LogStore     = Green + "[Store]" + Reset
	LogReconcile = Cyan + "[Store:Reconcile]" + Reset
	LogSession   = Blue + "[Store:Session]" + Reset
	LogEvents    = Purple + "[Events]" + Reset
)

// Server/Init log prefixes
const (
	LogServer = Green + "[Server]" + Reset
	LogConfig = Cyan + "[Config]" + Reset
	LogStats  = Blue + "[Stats]" + Reset
)

// CircuitBreakerPrefix returns a colored circuit breaker prefix with the given name
func CircuitBreakerPrefix(name string) string {
	return Purple + "[CircuitBreaker:" + name + "]" + Reset
}
