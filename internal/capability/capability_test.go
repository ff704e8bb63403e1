package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phantomos/phantom/internal/fault"
)

func TestBuckets_PartitionTheVocabulary(t *testing.T) {
	assert.Equal(t, All, AutoApprove|UserApprove|Info)
	assert.True(t, AutoApprove.Intersect(UserApprove).Empty())
	assert.True(t, AutoApprove.Intersect(Info).Empty())
	assert.True(t, UserApprove.Intersect(Info).Empty())
	assert.Len(t, All.Caps(), Count)
}

func TestParse(t *testing.T) {
	c, err := Parse("WRITE_FILES")
	require.NoError(t, err)
	assert.Equal(t, WriteFiles, c)

	c, err = Parse("  net_tls ")
	require.NoError(t, err)
	assert.Equal(t, NetTLS, c)

	_, err = Parse("FLY")
	require.Error(t, err)
	assert.True(t, fault.IsInvalidInput(err))
}

func TestParseSet(t *testing.T) {
	s, err := ParseSet("READ_FILES, WRITE_FILES,,SPAWN_TASK")
	require.NoError(t, err)
	assert.True(t, s.Has(ReadFiles))
	assert.True(t, s.Has(WriteFiles))
	assert.True(t, s.Has(SpawnTask))
	assert.Len(t, s.Caps(), 3)

	_, err = ParseSet("READ_FILES,BOGUS")
	require.Error(t, err)

	s, err = ParseSet("")
	require.NoError(t, err)
	assert.True(t, s.Empty())
}

func TestSet_Operations(t *testing.T) {
	s := Set(0).With(ReadFiles).With(NetTLS)
	assert.True(t, s.Has(ReadFiles))
	assert.False(t, s.Has(WriteFiles))

	s = s.Without(NetTLS)
	assert.False(t, s.Has(NetTLS))

	a := Set(ReadFiles | WriteFiles)
	b := Set(WriteFiles | NetConnect)
	assert.Equal(t, Set(ReadFiles|WriteFiles|NetConnect), a.Union(b))
	assert.Equal(t, Set(WriteFiles), a.Intersect(b))
	assert.True(t, Set(WriteFiles).SubsetOf(a))
	assert.False(t, a.SubsetOf(b))
}

func TestSet_String(t *testing.T) {
	assert.Equal(t, "NONE", Set(0).String())
	assert.Equal(t, "READ_FILES,WRITE_FILES", Set(ReadFiles|WriteFiles).String())
	assert.Equal(t, "GOVERNOR_BYPASS", Cap(GovernorBypass).String())
	assert.Equal(t, "UNKNOWN", Cap(1<<30).String())
}

func TestSet_ApprovalClasses(t *testing.T) {
	assert.False(t, Set(ReadFiles|ListFiles).RequiresUser())
	assert.True(t, Set(ReadFiles|NetConnect).RequiresUser())
	assert.True(t, Set(GovernorBypass).RequiresUser())

	assert.True(t, Set(ReadFiles|ReadSysInfo).LoggedOnly())
	assert.False(t, Set(ReadFiles|RawDevice).LoggedOnly())
}
