package exam

// SetShuffleFunc replaces the question shuffler until the returned restore is called.
func SetShuffleFunc(f func(n int, swap func(i, j int))) (restore func()) {
	orig := shuffleFunc
	shuffleFunc = f
	return func() { shuffleFunc = orig }
}
