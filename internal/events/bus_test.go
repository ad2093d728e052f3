// ABOUTME: Tests for the MQTT invalidation bus using an in-memory transport.
// ABOUTME: Checks publishing of local invalidations and loop-free application of remote ones.

package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/2389/sitewalk/internal/config"
	"github.com/2389/sitewalk/internal/querycache"
)

type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (doneToken) Error() error { return nil }

type fakeTransport struct {
	published chan []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{published: make(chan []byte, 8)}
}

func (f *fakeTransport) Publish(_ string, _ byte, _ bool, payload interface{}) pahomqtt.Token {
	f.published <- payload.([]byte)
	return doneToken{}
}

func (f *fakeTransport) Subscribe(string, byte, pahomqtt.MessageHandler) pahomqtt.Token {
	return doneToken{}
}

func (f *fakeTransport) Unsubscribe(...string) pahomqtt.Token { return doneToken{} }
func (f *fakeTransport) Disconnect(uint)                      {}

func startBus(t *testing.T) (*Bus, *fakeTransport, *querycache.Cache) {
	t.Helper()
	ft := newFakeTransport()
	cache := querycache.New()
	b := newBus(ft, "sitewalk/invalidate", 1, cache, zerolog.Nop())
	b.start()
	t.Cleanup(b.Close)
	return b, ft, cache
}

func TestBus_PublishesLocalInvalidations(t *testing.T) {
	b, ft, cache := startBus(t)

	cache.Invalidate("projects/7/cameras")

	select {
	case payload := <-ft.published:
		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			t.Fatalf("payload is not a message: %v", err)
		}
		if msg.Key != "projects/7/cameras" || msg.Origin != b.Origin() {
			t.Errorf("published %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("invalidation was not published")
	}
}

func TestBus_AppliesRemoteInvalidationsWithoutEcho(t *testing.T) {
	b, ft, cache := startBus(t)
	cache.Set("projects/7/cameras", []int{1})

	payload, _ := json.Marshal(Message{Origin: "other-instance", Key: "projects/7"})
	b.handle(payload)

	if _, ok := cache.Get("projects/7/cameras"); ok {
		t.Error("remote invalidation did not reach the cache")
	}
	select {
	case p := <-ft.published:
		t.Errorf("remote invalidation was republished: %s", p)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_IgnoresOwnAndMalformedMessages(t *testing.T) {
	b, _, cache := startBus(t)
	cache.Set("projects/7/cameras", []int{1})

	own, _ := json.Marshal(Message{Origin: b.Origin(), Key: "projects/7"})
	b.handle(own)
	b.handle([]byte("not json"))

	if _, ok := cache.Get("projects/7/cameras"); !ok {
		t.Error("cache entry should survive own and malformed messages")
	}
}

func TestConnect_Disabled(t *testing.T) {
	if _, err := Connect(config.MQTTConfig{}, querycache.New(), zerolog.Nop()); !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}
