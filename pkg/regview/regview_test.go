package regview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestRedirectedPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`Software\Classes\TypeLib\{00020905-0000-0000-C000-000000000046}`, `Software\Classes\Wow6432Node\TypeLib\{00020905-0000-0000-C000-000000000046}`},
		{`SOFTWARE\CLASSES\TypeLib`, `SOFTWARE\CLASSES\Wow6432Node\TypeLib`},
		{`SOFTWARE\Microsoft\Windows\CurrentVersion\Installer\UpgradeCodes`, `SOFTWARE\Wow6432Node\Microsoft\Windows\CurrentVersion\Installer\UpgradeCodes`},
		{`Installer\Products`, `Installer\Wow6432Node\Products`},
		{`Installer`, `Wow6432Node\Installer`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RedirectedPath(tt.in), tt.in)
	}
}

type ViewSuite struct {
	suite.Suite
	backend *MemoryBackend
	view    *View
	loc     Location
}

func (s *ViewSuite) SetupTest() {
	s.backend = NewMemoryBackend()
	s.view = New(s.backend, true)
	s.loc = Location{Hive: LocalMachine, Path: `SOFTWARE\Vendor\Product`}
}

func TestViewSuite(t *testing.T) {
	suite.Run(t, new(ViewSuite))
}

func (s *ViewSuite) redirected() string { return RedirectedPath(s.loc.Path) }

func (s *ViewSuite) TestExistsInRedirectedViewOnly() {
	s.False(s.view.Exists(s.loc))
	s.backend.CreateKey(LocalMachine, s.redirected())
	s.True(s.view.Exists(s.loc))
}

func (s *ViewSuite) TestThirtyTwoBitHostIgnoresRedirectedView() {
	s.backend.CreateKey(LocalMachine, s.redirected())
	v := New(s.backend, false)
	s.False(v.Exists(s.loc))
	s.Equal([]string{s.loc.Path}, v.Physical(s.loc.Path))
}

func (s *ViewSuite) TestSubKeyNamesUnionDeduplicatesCaseInsensitively() {
	s.backend.CreateKey(LocalMachine, s.loc.Path+`\Alpha`)
	s.backend.CreateKey(LocalMachine, s.loc.Path+`\Shared`)
	s.backend.CreateKey(LocalMachine, s.redirected()+`\SHARED`)
	s.backend.CreateKey(LocalMachine, s.redirected()+`\Beta`)

	names := s.view.SubKeyNames(s.loc)
	s.Equal([]string{"Alpha", "Beta", "Shared"}, names)
}

func (s *ViewSuite) TestEnumerateMissingKeyIsEmpty() {
	s.Empty(s.view.SubKeyNames(s.loc))
	s.Empty(s.view.ValueNames(s.loc))
}

func (s *ViewSuite) TestValueNamesUnion() {
	s.Require().NoError(s.backend.SetValue(LocalMachine, s.loc.Path, "One", StringValue("1")))
	s.Require().NoError(s.backend.SetValue(LocalMachine, s.redirected(), "Two", StringValue("2")))
	s.Require().NoError(s.backend.SetValue(LocalMachine, s.redirected(), "one", StringValue("1")))

	s.Equal([]string{"One", "Two"}, s.view.ValueNames(s.loc))
}

func (s *ViewSuite) TestGetValuePrefersNative() {
	s.Require().NoError(s.backend.SetValue(LocalMachine, s.loc.Path, "Path", StringValue("native")))
	s.Require().NoError(s.backend.SetValue(LocalMachine, s.redirected(), "Path", StringValue("wow")))

	got, ok := s.view.GetString(s.loc, "Path")
	s.True(ok)
	s.Equal("native", got)
}

func (s *ViewSuite) TestGetValueFallsBackToRedirected() {
	s.Require().NoError(s.backend.SetValue(LocalMachine, s.redirected(), "Path", StringValue("wow")))

	got, ok := s.view.GetString(s.loc, "Path")
	s.True(ok)
	s.Equal("wow", got)

	_, ok = s.view.GetStrings(s.loc, "Path")
	s.False(ok, "kind mismatch is not found")
}

func (s *ViewSuite) TestDeleteKeyInRedirectedViewOnly() {
	s.backend.CreateKey(LocalMachine, s.redirected()+`\Child`)

	s.True(s.view.DeleteKey(s.loc))
	s.False(s.view.Exists(s.loc))
}

func (s *ViewSuite) TestDeleteKeyBothViews() {
	s.backend.CreateKey(LocalMachine, s.loc.Path+`\Child\Grandchild`)
	s.backend.CreateKey(LocalMachine, s.redirected())

	s.True(s.view.DeleteKey(s.loc))
	ok, _ := s.backend.KeyExists(LocalMachine, s.loc.Path)
	s.False(ok)
	ok, _ = s.backend.KeyExists(LocalMachine, s.redirected())
	s.False(ok)
}

func (s *ViewSuite) TestDeleteAbsentKeyIsIdempotent() {
	s.True(s.view.DeleteKey(s.loc))
	s.True(s.view.DeleteKey(s.loc))
}

func (s *ViewSuite) TestDeleteKeyDenied() {
	s.backend.CreateKey(LocalMachine, s.loc.Path+`\Locked`)
	s.backend.DenyDelete(LocalMachine, s.loc.Path+`\Locked`)

	s.False(s.view.DeleteKey(s.loc))
	s.True(s.view.Exists(s.loc))
}

func (s *ViewSuite) TestDeleteKeyOneViewDeniedOtherRemoved() {
	s.backend.CreateKey(LocalMachine, s.loc.Path)
	s.backend.CreateKey(LocalMachine, s.redirected())
	s.backend.DenyDelete(LocalMachine, s.loc.Path)

	s.True(s.view.DeleteKey(s.loc))
	ok, _ := s.backend.KeyExists(LocalMachine, s.redirected())
	s.False(ok)
}

func (s *ViewSuite) TestDeleteValue() {
	s.Require().NoError(s.backend.SetValue(LocalMachine, s.redirected(), "Name", StringValue("x")))

	s.True(s.view.DeleteValue(s.loc, "Name"))
	_, ok := s.view.GetValue(s.loc, "Name")
	s.False(ok)
	s.True(s.view.DeleteValue(s.loc, "Name"), "absent value is success")
}

func (s *ViewSuite) TestSetValueCreatesNativeWhenMissing() {
	s.True(s.view.SetValue(s.loc, "Name", DWordValue(7)))

	v, err := s.backend.GetValue(LocalMachine, s.loc.Path, "Name")
	s.Require().NoError(err)
	s.Equal(uint64(7), v.Integer)
	ok, _ := s.backend.KeyExists(LocalMachine, s.redirected())
	s.False(ok)
}

func (s *ViewSuite) TestSetValueWritesEveryExistingView() {
	s.backend.CreateKey(LocalMachine, s.redirected())

	s.True(s.view.SetValue(s.loc, "Name", StringValue("x")))
	_, err := s.backend.GetValue(LocalMachine, s.redirected(), "Name")
	s.NoError(err)
	ok, _ := s.backend.KeyExists(LocalMachine, s.loc.Path)
	s.False(ok, "native key is not created when the redirected one exists")
}

func (s *ViewSuite) TestFilterStringsPerView() {
	s.Require().NoError(s.backend.SetValue(LocalMachine, s.loc.Path, "List", MultiStringValue([]string{"drop-a", "keep-a"})))
	s.Require().NoError(s.backend.SetValue(LocalMachine, s.redirected(), "List", MultiStringValue([]string{"drop-b"})))

	dropped, ok := s.view.FilterStrings(s.loc, "List", func(e string) bool { return e[:4] != "drop" })
	s.True(ok)
	s.ElementsMatch([]string{"drop-a", "drop-b"}, dropped)

	native, err := s.backend.GetValue(LocalMachine, s.loc.Path, "List")
	s.Require().NoError(err)
	s.Equal([]string{"keep-a"}, native.Strings)

	_, err = s.backend.GetValue(LocalMachine, s.redirected(), "List")
	s.ErrorIs(err, ErrNotExist, "emptied list is deleted")
}

func (s *ViewSuite) TestFilterStringsReportsSharedEntryOnce() {
	list := MultiStringValue([]string{"drop-a", "keep-a"})
	s.Require().NoError(s.backend.SetValue(LocalMachine, s.loc.Path, "List", list))
	s.Require().NoError(s.backend.SetValue(LocalMachine, s.redirected(), "List", list))

	dropped, ok := s.view.FilterStrings(s.loc, "List", func(e string) bool { return e[:4] != "drop" })
	s.True(ok)
	s.Equal([]string{"drop-a"}, dropped)

	for _, p := range []string{s.loc.Path, s.redirected()} {
		v, err := s.backend.GetValue(LocalMachine, p, "List")
		s.Require().NoError(err)
		s.Equal([]string{"keep-a"}, v.Strings, p)
	}
}

func (s *ViewSuite) TestDryRunLeavesBackendUntouched() {
	s.backend.CreateKey(LocalMachine, s.loc.Path)
	s.Require().NoError(s.backend.SetValue(LocalMachine, s.loc.Path, "Name", StringValue("x")))
	s.Require().NoError(s.backend.SetValue(LocalMachine, s.loc.Path, "List", MultiStringValue([]string{"a"})))
	v := New(s.backend, true, WithDryRun())

	s.True(v.DeleteValue(s.loc, "Name"))
	dropped, ok := v.FilterStrings(s.loc, "List", func(string) bool { return false })
	s.True(ok)
	s.Equal([]string{"a"}, dropped)
	s.True(v.DeleteKey(s.loc))

	s.True(s.view.Exists(s.loc))
	_, err := s.backend.GetValue(LocalMachine, s.loc.Path, "Name")
	s.NoError(err)
	_, err = s.backend.GetValue(LocalMachine, s.loc.Path, "List")
	s.NoError(err)
}

func TestLocationJoin(t *testing.T) {
	loc := Location{Hive: ClassesRoot, Path: `Installer\Products`}
	child := loc.Join("00006109C80000000000000000F01FEC", "SourceList")
	require.Equal(t, `Installer\Products\00006109C80000000000000000F01FEC\SourceList`, child.Path)
	assert.Equal(t, `HKCR\Installer\Products\00006109C80000000000000000F01FEC\SourceList`, child.String())
}
