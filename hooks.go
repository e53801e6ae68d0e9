package bindcache

// Hooks are lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; the cache calls them on
// hot paths. Wrap with hooks/async to decouple slow consumers.
type Hooks interface {
	// A bind or raw reload failed and the previous bound value was served
	// instead (best-effort availability).
	BindFallback(kind, id string, err error)

	// The reload generation for an id was bumped; cached entries for the
	// id are now stale and re-bind on next access.
	ReloadMarked(id string, gen uint64)

	// The filesystem watcher reported an infrastructure error.
	WatchError(err error)

	// GenStore errors (reads treat the generation as 0 and recover on the
	// next access).
	GenSnapshotError(id string, err error)
	GenBumpError(id string, err error)

	// A cached source entry was dropped on read.
	// reason is "corrupt" or "gen_mismatch".
	SourceSelfHeal(key, reason string)
}

// NopHooks is the default no-op.
type NopHooks struct{}

func (NopHooks) BindFallback(string, string, error) {}
func (NopHooks) ReloadMarked(string, uint64)        {}
func (NopHooks) WatchError(error)                   {}
func (NopHooks) GenSnapshotError(string, error)     {}
func (NopHooks) GenBumpError(string, error)         {}
func (NopHooks) SourceSelfHeal(string, string)      {}
