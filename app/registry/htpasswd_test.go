package registry

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestRegistry_UpdateRobots(t *testing.T) {
	var robots []RobotAccount

	for i := 0; i < 10; i++ {
		hash, errHash := bcrypt.GenerateFromPassword([]byte(fmt.Sprintf("password_%d", i)), bcrypt.MinCost)
		require.NoError(t, errHash)
		robots = append(robots, RobotAccount{
			Login:        fmt.Sprintf("mirror+robot_%d", i),
			PasswordHash: string(hash),
		})
	}

	testPath := t.TempDir() + "/access/.htpasswd"

	r := Registry{robots: &htpasswd{path: testPath}}
	require.NoError(t, r.UpdateRobots(robots))

	entries := htpasswdReader(t, testPath)
	assert.Equal(t, 10, len(entries))

	for k, v := range entries {
		keySuffix := k[len(k)-2:]
		err := bcrypt.CompareHashAndPassword(v, []byte("password"+keySuffix))
		assert.NoError(t, err)
	}

	// repeated update rewrites the file instead of appending
	require.NoError(t, r.UpdateRobots(robots[:3]))
	assert.Equal(t, 3, len(htpasswdReader(t, testPath)))

	r.robots.path = ""
	assert.Error(t, r.UpdateRobots(robots))

	r.robots = nil
	assert.Error(t, r.UpdateRobots(robots))
}

func htpasswdReader(t *testing.T, path string) map[string][]byte {
	entries := map[string][]byte{}
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, f.Close())
	}()

	scanner := bufio.NewScanner(f)
	var line int
	for scanner.Scan() {
		line++ // 1-based line numbering
		text := strings.TrimSpace(scanner.Text())

		if len(text) < 1 {
			continue
		}

		// lines that *begin* with a '#' are considered comments
		if text[0] == '#' {
			continue
		}

		i := strings.Index(text, ":")
		if i < 0 || i >= len(text) {
			require.FailNow(t, "htpasswd: invalid entry at line %d: %q", line, scanner.Text())
		}

		entries[text[:i]] = []byte(text[i+1:])
	}

	if err := scanner.Err(); err != nil {
		require.FailNow(t, "htpasswd: invalid entry at line %v", err)
	}
	return entries
}
