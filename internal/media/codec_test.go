package media

import "testing"

func TestCodecRegistry(t *testing.T) {
	if _, ok := LookupCodec("video/x-test-none"); ok {
		t.Fatal("lookup hit for unregistered mime")
	}

	calls := 0
	RegisterCodec("video/X-Test", func() (Codec, error) {
		calls++
		return &rawCodec{}, nil
	})

	// lookup is case-insensitive
	f, ok := LookupCodec("video/x-test")
	if !ok {
		t.Fatal("registered codec not found")
	}
	c, err := f()
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	defer c.Close()
	if calls != 1 {
		t.Errorf("factory called %d times, want 1", calls)
	}

	// later registrations replace earlier ones
	RegisterCodec("video/x-test", func() (Codec, error) { return &rawCodec{decodeErr: errSentinel}, nil })
	f, _ = LookupCodec("VIDEO/X-TEST")
	c2, _ := f()
	defer c2.Close()
	if _, err := c2.Decode(rawSample(0, 0, 0)); err == nil {
		t.Error("replacement codec not used")
	}
}
