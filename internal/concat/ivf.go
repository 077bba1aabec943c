package concat

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"lathe/internal/services"
)

// IVF layout: a 32-byte file header ("DKIF", version, header size, fourcc,
// dimensions, timebase, frame count), then per-frame 12-byte headers (frame
// size, 64-bit timestamp) followed by the payload.

const (
	ivfFileHeaderSize  = 32
	ivfFrameHeaderSize = 12
)

type ivfHeader struct {
	raw        [ivfFileHeaderSize]byte
	frameCount uint32
}

// Ivf merges ivf segments into out without external tools. The first
// segment's header wins; timestamps are rewritten to a single monotone
// sequence and the header frame count becomes the sum of all segments.
func Ivf(segments []string, out string) error {
	if len(segments) == 0 {
		return services.Wrap(services.ErrInvalidInput, "concat", "ivf", "no segments", nil)
	}

	outFile, err := os.Create(out)
	if err != nil {
		return services.Wrap(services.ErrEncoderRun, "concat", "ivf", "create output", err)
	}
	defer outFile.Close()

	writer := bufio.NewWriter(outFile)

	var header ivfHeader
	var totalFrames uint32
	var nextTimestamp uint64

	for i, segment := range segments {
		segHeader, frames, err := appendIvfSegment(writer, segment, i == 0, &nextTimestamp)
		if err != nil {
			return err
		}
		if i == 0 {
			header = segHeader
		}
		totalFrames += frames
	}

	if err := writer.Flush(); err != nil {
		return services.Wrap(services.ErrEncoderRun, "concat", "ivf", "flush output", err)
	}

	// Patch the frame count in the header now that it is known.
	binary.LittleEndian.PutUint32(header.raw[24:28], totalFrames)
	if _, err := outFile.WriteAt(header.raw[:], 0); err != nil {
		return services.Wrap(services.ErrEncoderRun, "concat", "ivf", "rewrite header", err)
	}
	return outFile.Close()
}

func appendIvfSegment(writer *bufio.Writer, path string, first bool, nextTimestamp *uint64) (ivfHeader, uint32, error) {
	file, err := os.Open(path)
	if err != nil {
		return ivfHeader{}, 0, services.Wrap(services.ErrEncoderRun, "concat", "ivf", path, err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)

	var header ivfHeader
	if _, err := io.ReadFull(reader, header.raw[:]); err != nil {
		return ivfHeader{}, 0, services.Wrap(services.ErrEncoderRun, "concat", "ivf",
			fmt.Sprintf("%s: short header", path), err)
	}
	if string(header.raw[0:4]) != "DKIF" {
		return ivfHeader{}, 0, services.Wrap(services.ErrEncoderRun, "concat", "ivf",
			fmt.Sprintf("%s is not an ivf file", path), nil)
	}
	header.frameCount = binary.LittleEndian.Uint32(header.raw[24:28])

	if first {
		if _, err := writer.Write(header.raw[:]); err != nil {
			return ivfHeader{}, 0, services.Wrap(services.ErrEncoderRun, "concat", "ivf", "write header", err)
		}
	}

	var frames uint32
	var frameHeader [ivfFrameHeaderSize]byte
	for {
		if _, err := io.ReadFull(reader, frameHeader[:]); err != nil {
			if err == io.EOF {
				break
			}
			if err == io.ErrUnexpectedEOF {
				// Trailing garbage after the last full frame; stop here.
				break
			}
			return ivfHeader{}, 0, services.Wrap(services.ErrEncoderRun, "concat", "ivf",
				fmt.Sprintf("%s: frame header", path), err)
		}
		frameSize := binary.LittleEndian.Uint32(frameHeader[0:4])

		binary.LittleEndian.PutUint64(frameHeader[4:12], *nextTimestamp)
		*nextTimestamp++

		if _, err := writer.Write(frameHeader[:]); err != nil {
			return ivfHeader{}, 0, services.Wrap(services.ErrEncoderRun, "concat", "ivf", "write frame header", err)
		}
		if _, err := io.CopyN(writer, reader, int64(frameSize)); err != nil {
			return ivfHeader{}, 0, services.Wrap(services.ErrEncoderRun, "concat", "ivf",
				fmt.Sprintf("%s: truncated frame payload", path), err)
		}
		frames++
	}
	return header, frames, nil
}

// IvfFrameCount reads the frame count recorded in an ivf file header.
func IvfFrameCount(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	var header [ivfFileHeaderSize]byte
	if _, err := io.ReadFull(file, header[:]); err != nil {
		return 0, fmt.Errorf("%s: short ivf header: %w", path, err)
	}
	if string(header[0:4]) != "DKIF" {
		return 0, fmt.Errorf("%s is not an ivf file", path)
	}
	return int(binary.LittleEndian.Uint32(header[24:28])), nil
}
