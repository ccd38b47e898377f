package stack

import "testing"

// BenchmarkPushPopUncontended measures single-goroutine push/pop cost
// for every variant with no contention at all.
func BenchmarkPushPopUncontended(b *testing.B) {
	for name, ctor := range variants() {
		b.Run(name, func(b *testing.B) {
			s := ctor()
			for i := 0; i < b.N; i++ {
				s.Push(i)
				s.Pop()
			}
		})
	}
}

// BenchmarkPushPopContended measures throughput under contention from
// many goroutines pushing and popping the same stack concurrently.
func BenchmarkPushPopContended(b *testing.B) {
	for name, ctor := range variants() {
		b.Run(name, func(b *testing.B) {
			s := ctor()
			b.RunParallel(func(pb *testing.PB) {
				i := 0
				for pb.Next() {
					s.Push(i)
					s.Pop()
					i++
				}
			})
		})
	}
}

// BenchmarkPushOnlyContended isolates push cost under contention,
// which is where the elimination-backoff and flat-combining variants
// are meant to have their advantage over plain Treiber CAS retries.
func BenchmarkPushOnlyContended(b *testing.B) {
	for name, ctor := range variants() {
		b.Run(name, func(b *testing.B) {
			s := ctor()
			b.RunParallel(func(pb *testing.PB) {
				i := 0
				for pb.Next() {
					s.Push(i)
					i++
				}
			})
		})
	}
}
