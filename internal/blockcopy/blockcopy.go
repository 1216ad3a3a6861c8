// Package blockcopy implements the block-copy primitive at the heart of
// the Copy/Move Executor (spec §4.F.a), grounded on
// original_source/rnr/rnr_cpmv.py:rnr_copyfile and
// original_source/rnr/fallocate.py. It reads the source in BlockSize
// chunks, writes them with O_DSYNC durability, fallocates the destination
// up front when creating fresh, and resumes a partial destination by
// seeking both handles to the last full block already on disk.
package blockcopy

import (
	"context"
	"hash"
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bugnano/rnr/internal/ctrlflow"
	"github.com/bugnano/rnr/internal/progressbus"
)

// DefaultBlockSize is the fallback used when the destination filesystem's
// block size can't be determined, matching rnr_cpmv's hardcoded 131072.
const DefaultBlockSize = 131072

// BlockSizeFor mirrors `max(dest.lstat().st_blksize, 131072)`: it lstats
// destDir (the directory a file will be copied into) and returns the
// larger of its block size and DefaultBlockSize, or DefaultBlockSize if the
// lstat fails.
func BlockSizeFor(destDir string) int64 {
	var st unix.Stat_t
	if err := unix.Lstat(destDir, &st); err != nil {
		return DefaultBlockSize
	}

	if int64(st.Blksize) > DefaultBlockSize {
		return int64(st.Blksize)
	}

	return DefaultBlockSize
}

// Progress is pushed to the caller-supplied callback at most once per 40ms,
// matching rnr_copyfile's 0.04s throttle.
type Progress struct {
	BytesWritten int64
}

// Options configures one Copy call.
type Options struct {
	BlockSize int64
	// Resume, when true, opens the destination for writing without
	// O_CREAT|O_EXCL|O_TRUNC and seeks both handles forward to the last
	// full block already present, accounting those bytes as already done
	// rather than rewriting them (spec §4.F.b "On resume").
	Resume bool
	// Hasher, if non-nil, is fed every byte read from the source in this
	// call (bytes skipped over on resume are not fed to it). The executor's
	// --checksum pass does not set it; it re-reads both files after the
	// copy instead.
	Hasher  hash.Hash
	Events  *ctrlflow.Events
	Bus     *progressbus.Bus
	OnBytes func(Progress)
}

// Copy copies fileSize bytes from srcPath to dstPath per Options, returning
// the number of bytes actually written in this call (excluding any bytes
// skipped over on resume).
// A ctrlflow skip/abort mid-copy is returned as an error wrapping
// ctrlflow.ErrSkipped / ctrlflow.ErrAborted, same as rnr_copyfile raising
// SkippedError/AbortedError out of its read loop.
func Copy(ctx context.Context, srcPath, dstPath string, fileSize int64, opts Options) (written int64, err error) {
	blockSize := opts.BlockSize
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	var dst *os.File

	if opts.Resume {
		dst, err = os.OpenFile(dstPath, os.O_WRONLY|unix.O_DSYNC, 0)
	} else {
		dst, err = os.OpenFile(dstPath, os.O_CREAT|os.O_WRONLY|os.O_TRUNC|os.O_EXCL|unix.O_DSYNC, 0o666)
	}

	if err != nil {
		return 0, err
	}
	defer dst.Close()

	var resumeOffset int64

	if opts.Resume {
		resumeOffset, err = resumeSeek(src, dst, blockSize)
		if err != nil {
			return 0, err
		}
	} else {
		// Best-effort preallocation: fallocate.py swallows every OSError
		// here (ENOTSUP/EOPNOTSUPP/ENOSYS on filesystems that don't
		// support it, but also anything else), so a failure here never
		// aborts the copy.
		_ = unix.Fallocate(int(dst.Fd()), unix.FALLOC_FL_KEEP_SIZE, 0, fileSize)
	}

	buf := make([]byte, blockSize)
	throttle := progressbus.NewThrottle(40 * time.Millisecond)

	for {
		if ctx != nil && ctx.Err() != nil {
			return written, ctrlflow.Interrupted()
		}

		sig := ctrlflow.SignalNone
		if opts.Events != nil {
			sig = opts.Events.Check()
		}

		switch sig {
		case ctrlflow.SignalAbort:
			return written, ctrlflow.Aborted()
		case ctrlflow.SignalSkip:
			return written, ctrlflow.Skipped("")
		case ctrlflow.SignalInterrupt:
			return written, ctrlflow.Interrupted()
		}

		n, rerr := src.Read(buf)
		if n > 0 {
			if opts.Hasher != nil {
				_, _ = opts.Hasher.Write(buf[:n])
			}

			if werr := writeFull(dst, buf[:n]); werr != nil {
				return written, werr
			}

			written += int64(n)

			if throttle.Ready(time.Now()) {
				if opts.OnBytes != nil {
					opts.OnBytes(Progress{BytesWritten: written})
				}

				if opts.Bus != nil {
					opts.Bus.PushSample(progressbus.Sample{CurSize: resumeOffset + written, TotalSize: fileSize})
				}
			}
		}

		if rerr != nil {
			if rerr == io.EOF {
				break
			}

			return written, rerr
		}

		if n == 0 {
			break
		}
	}

	return written, nil
}

// resumeSeek implements the "On resume" paragraph: seek both handles to
// floor(existing_size/block_size - 1) * block_size (never negative) and
// report that offset so the caller can account those bytes as already
// done.
func resumeSeek(src, dst *os.File, blockSize int64) (int64, error) {
	info, err := dst.Stat()
	if err != nil {
		return 0, err
	}

	existingSize := info.Size()

	blocks := existingSize/blockSize - 1
	if blocks < 0 {
		blocks = 0
	}

	offset := blocks * blockSize

	if _, err := src.Seek(offset, io.SeekStart); err != nil {
		return 0, err
	}

	if _, err := dst.Seek(offset, io.SeekStart); err != nil {
		return 0, err
	}

	return offset, nil
}

func writeFull(f *os.File, buf []byte) error {
	for len(buf) > 0 {
		n, err := f.Write(buf)
		if err != nil {
			return err
		}

		buf = buf[n:]
	}

	return nil
}
