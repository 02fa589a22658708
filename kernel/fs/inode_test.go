package fs

import "testing"

func TestResolveNotFound(t *testing.T) {
	if _, err := Resolve("/does/not/exist"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound; got %v", err)
	}
}

func TestInstallAndResolve(t *testing.T) {
	InstallProgram("/bin/init", []byte("hello world"))

	inode, err := Resolve("/bin/init")
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}

	Lock(inode)
	defer Unlock(inode)

	buf := make([]byte, 5)
	n, err := Read(inode, buf, 0, 5)
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}
	if n != 5 || string(buf) != "hello" {
		t.Fatalf("expected to read %q; got %q", "hello", string(buf[:n]))
	}
}

func TestReadPastEndIsShort(t *testing.T) {
	InstallProgram("/bin/short", []byte("abc"))
	inode, err := Resolve("/bin/short")
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}

	buf := make([]byte, 10)
	if _, err := Read(inode, buf, 0, 10); err != ErrShortRead {
		t.Fatalf("expected ErrShortRead; got %v", err)
	}
}

func TestReadAtOffset(t *testing.T) {
	InstallProgram("/bin/offset", []byte("0123456789"))
	inode, err := Resolve("/bin/offset")
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}

	buf := make([]byte, 3)
	n, err := Read(inode, buf, 5, 3)
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}
	if n != 3 || string(buf) != "567" {
		t.Fatalf("expected %q; got %q", "567", string(buf))
	}
}

func TestReleaseIsANoOpAndInodeRemainsUsable(t *testing.T) {
	InstallProgram("/bin/keep", []byte("x"))
	inode, _ := Resolve("/bin/keep")
	Release(inode)

	if _, err := Resolve("/bin/keep"); err != nil {
		t.Fatalf("expected inode to remain resolvable after Release; got %v", err)
	}
}
