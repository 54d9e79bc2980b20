package engine

// noCopy is embedded in primitives whose address identity is part of
// their contract. It implements sync.Locker so `go vet -copylocks`
// flags copies, the same trick as sync.Mutex's noCopy field.
type noCopy struct{}

// Lock is a no-op implementation of sync.Locker.Lock.
func (*noCopy) Lock() {}

// Unlock is a no-op implementation of sync.Locker.Unlock.
func (*noCopy) Unlock() {}
