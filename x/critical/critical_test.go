package critical

import (
	"sync"
	"testing"
)

func TestSectionSerialisesReadModifyWrite(t *testing.T) {
	var s Section
	n := 0
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				s.Do(func() { n++ })
			}
		}()
	}
	wg.Wait()
	if n != 8000 {
		t.Fatalf("n = %d, want 8000", n)
	}
}
