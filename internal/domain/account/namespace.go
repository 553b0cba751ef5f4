package account

// Namespace derives the account-scoped storage key for baseKey.
// For a fixed baseKey the result is distinct for every distinct account key.
func Namespace(baseKey string, identity Identity) string {
	return identity.PreferenceKey(baseKey)
}
