package proxy

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mxkodo/pubcast/internal/config"
)

func TestNextRoundRobin(t *testing.T) {
	pool := []Descriptor{
		{Server: "http://proxy-a:8080"},
		{Server: "http://proxy-b:8080"},
		{Server: "http://proxy-c:8080"},
	}
	s := NewSelector(pool)

	// Two full cycles: each descriptor exactly once per K calls.
	for cycle := 0; cycle < 2; cycle++ {
		seen := make(map[string]int)
		for i := 0; i < len(pool); i++ {
			d := s.Next()
			require.NotNil(t, d)
			seen[d.Server]++
		}
		for _, p := range pool {
			assert.Equal(t, 1, seen[p.Server])
		}
	}
}

func TestEmptyPool(t *testing.T) {
	s := NewSelector(nil)
	assert.Nil(t, s.Next())
	assert.Nil(t, s.Next())
	assert.Nil(t, s.Random())
	assert.Nil(t, s.Current())
	assert.Equal(t, 0, s.Size())
}

func TestCurrentDoesNotAdvance(t *testing.T) {
	s := NewSelector([]Descriptor{{Server: "a"}, {Server: "b"}})
	assert.Equal(t, "a", s.Current().Server)
	assert.Equal(t, "a", s.Current().Server)
	assert.Equal(t, "a", s.Next().Server)
	assert.Equal(t, "b", s.Current().Server)
}

func TestNextIsSafeConcurrently(t *testing.T) {
	s := NewSelector([]Descriptor{{Server: "a"}, {Server: "b"}, {Server: "c"}, {Server: "d"}})
	var wg sync.WaitGroup
	counts := make([]map[string]int, 8)
	for w := 0; w < 8; w++ {
		counts[w] = make(map[string]int)
		wg.Add(1)
		w := w
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if d := s.Next(); d != nil {
					counts[w][d.Server]++
				}
			}
		}()
	}
	wg.Wait()

	total := make(map[string]int)
	for _, c := range counts {
		for k, v := range c {
			total[k] += v
		}
	}
	// 800 draws over 4 descriptors: round-robin hands each out 200 times.
	for _, server := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, 200, total[server])
	}
}

func TestNormalizeBrightData(t *testing.T) {
	s, err := NewSelectorFromConfig(config.ProxyConfig{
		Service:  "brightdata",
		Username: "acct123",
		Password: "pw",
		Country:  "JP",
	})
	require.NoError(t, err)
	require.Equal(t, 3, s.Size())

	d := s.Next()
	assert.Equal(t, "http://brd.superproxy.io:22225", d.Server)
	assert.Equal(t, "acct123-zone-residential-country-jp", d.Username)
	assert.Equal(t, "pw", d.Password)
	assert.Equal(t, "JP", d.Country)
}

func TestNormalizeOxylabs(t *testing.T) {
	s, err := NewSelectorFromConfig(config.ProxyConfig{
		Service:  "oxylabs",
		Username: "shop",
		Password: "pw",
	})
	require.NoError(t, err)
	require.Equal(t, 1, s.Size())
	assert.Equal(t, "customer-shop-cc-jp", s.Current().Username)
}

func TestNormalizeManualRequiresHost(t *testing.T) {
	_, err := NewSelectorFromConfig(config.ProxyConfig{Service: "manual"})
	require.Error(t, err)

	s, err := NewSelectorFromConfig(config.ProxyConfig{Service: "manual", Host: "10.0.0.1", Port: 3128})
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.1:3128", s.Current().Server)
}

func TestNormalizeList(t *testing.T) {
	s, err := NewSelectorFromConfig(config.ProxyConfig{
		Service: "list",
		Servers: []string{"http://a:1", " ", "http://b:2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Size())
}

func TestNormalizeEmptyServiceMeansNoProxy(t *testing.T) {
	s, err := NewSelectorFromConfig(config.ProxyConfig{})
	require.NoError(t, err)
	assert.Nil(t, s.Next())
}

func TestNormalizeUnknownService(t *testing.T) {
	_, err := NewSelectorFromConfig(config.ProxyConfig{Service: "luminati"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown proxy service")
}

func TestMissingCredentials(t *testing.T) {
	for _, service := range []string{"brightdata", "oxylabs", "smartproxy"} {
		_, err := NewSelectorFromConfig(config.ProxyConfig{Service: service})
		assert.Error(t, err, service)
	}
}
