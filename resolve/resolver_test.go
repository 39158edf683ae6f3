package resolve

import (
	"context"
	"testing"
	"time"

	"github.com/dnsscience/resolve/internal/answer"
	"github.com/dnsscience/resolve/internal/dnswire"
	"github.com/dnsscience/resolve/internal/resultcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateNameRejectsEmpty(t *testing.T) {
	err := validateName("")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrArgument)
}

func TestValidateNameRejectsOverlong(t *testing.T) {
	long := make([]byte, maxNameLength+1)
	for i := range long {
		long[i] = 'a'
	}
	err := validateName(string(long))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrArgument)
}

func TestValidateNameAcceptsOrdinary(t *testing.T) {
	assert.NoError(t, validateName("example.com."))
}

func TestMinTTLNoRecordsIsUndefined(t *testing.T) {
	_, ok := minTTL(answer.Response{})
	assert.False(t, ok)
}

func TestMinTTLTakesSmallestAcrossSections(t *testing.T) {
	resp := answer.Response{
		Answers:     []dnswire.ResourceRecord{{TTL: 300}},
		Authorities: []dnswire.ResourceRecord{{TTL: 60}},
		Additionals: []dnswire.ResourceRecord{{TTL: 120}},
	}
	ttl, ok := minTTL(resp)
	require.True(t, ok)
	assert.Equal(t, 60*time.Second, ttl)
}

func TestMinTTLSingleSection(t *testing.T) {
	resp := answer.Response{Answers: []dnswire.ResourceRecord{{TTL: 45}}}
	ttl, ok := minTTL(resp)
	require.True(t, ok)
	assert.Equal(t, 45*time.Second, ttl)
}

func TestResolveAddressesRejectsBadFamily(t *testing.T) {
	r, err := FromServer(ServerEndpoint{Host: "127.0.0.1", Port: 53})
	require.NoError(t, err)
	defer r.Close()

	_, err = r.ResolveAddresses(context.Background(), "example.com.", Family(99))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrArgument)
}

func TestResolveAddressesRejectsEmptyName(t *testing.T) {
	r, err := FromServer(ServerEndpoint{Host: "127.0.0.1", Port: 53})
	require.NoError(t, err)
	defer r.Close()

	_, err = r.ResolveAddresses(context.Background(), "", FamilyIPv4)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrArgument)
}

// TestHandleNegativeNODATACachesPerTypeNotNameWide guards against NODATA
// for one qtype shadowing a different, already-cached type for the same
// name: it must write an empty (name, qtype) positive entry, never a
// name-wide negative entry.
func TestHandleNegativeNODATACachesPerTypeNotNameWide(t *testing.T) {
	cache := resultcache.New()
	require.True(t, resultcache.TryAdd(cache, "example.com.", dnswire.TypeA, time.Now().Add(time.Minute), []AddressResult{{Address: "192.0.2.1"}}))

	b := newMsgBuilder()
	b.rr("example.com.", dnswire.TypeSOA, 3600, func() {
		b.name("ns1.example.com.")
		b.name("hostmaster.example.com.")
		b.u32(2024010100)
		b.u32(3600)
		b.u32(600)
		b.u32(604800)
		b.u32(300) // minimum
	})
	msg := b.finish()
	soa, err := dnswire.NewReader(msg).ReadResourceRecord()
	require.NoError(t, err)

	resp := answer.Response{
		Header:      dnswire.Header{RCode: dnswire.RCodeNoError},
		StartedAt:   time.Now(),
		Authorities: []dnswire.ResourceRecord{soa},
	}
	handled := handleNegative[ServiceResult](cache, msg, resp, "example.com.", dnswire.TypeSRV)
	assert.True(t, handled)

	// The pre-existing A record for the same name must still be visible —
	// a NODATA response for SRV must not have poisoned every type.
	got, ok := resultcache.TryGetPositive[AddressResult](cache, "example.com.", dnswire.TypeA)
	require.True(t, ok)
	assert.Equal(t, []AddressResult{{Address: "192.0.2.1"}}, got)

	// And the SRV query itself should now hit an empty cached result,
	// rather than falling through to the network on every call.
	srvGot, ok := resultcache.TryGetPositive[ServiceResult](cache, "example.com.", dnswire.TypeSRV)
	require.True(t, ok)
	assert.Empty(t, srvGot)
}

func TestCloseIsIdempotent(t *testing.T) {
	r, err := FromServer(ServerEndpoint{Host: "127.0.0.1", Port: 53})
	require.NoError(t, err)
	assert.NoError(t, r.Close())
	assert.NoError(t, r.Close())
}
