package fuzzygo

// Close releases resources held by this store.
//
// Stores built by Badger[T]() and InMemory[T]() own their kv engine and
// close it; stores opened via Open or the Restore constructors leave the
// engine to the caller.
func (fg *Fuzzygo[T]) Close() error {
	if fg == nil {
		return nil
	}
	if fg.ownsKV && fg.kv != nil {
		err := fg.kv.Close()
		fg.kv = nil
		return err
	}
	return nil
}
