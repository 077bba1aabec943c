package ffprobe_test

import (
	"encoding/json"
	"testing"

	"lathe/internal/media/ffprobe"
)

const sampleJSON = `{
  "streams": [
    {
      "index": 0,
      "codec_name": "h264",
      "codec_type": "video",
      "width": 1920,
      "height": 1080,
      "pix_fmt": "yuv420p10le",
      "r_frame_rate": "24000/1001",
      "avg_frame_rate": "24000/1001",
      "nb_frames": "10000"
    },
    {
      "index": 1,
      "codec_name": "aac",
      "codec_type": "audio",
      "channels": 6
    }
  ],
  "format": {
    "filename": "input.mkv",
    "nb_streams": 2,
    "duration": "417.083",
    "format_name": "matroska,webm"
  }
}`

func TestVideoSummary(t *testing.T) {
	var result ffprobe.Result
	if err := json.Unmarshal([]byte(sampleJSON), &result); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}

	info, err := result.Video()
	if err != nil {
		t.Fatalf("Video returned error: %v", err)
	}
	if info.FrameCount != 10000 {
		t.Fatalf("frame count = %d, want 10000", info.FrameCount)
	}
	if info.Width != 1920 || info.Height != 1080 {
		t.Fatalf("resolution = %dx%d", info.Width, info.Height)
	}
	if info.BitDepth != 10 {
		t.Fatalf("bit depth = %d, want 10", info.BitDepth)
	}
	if !info.HasAudio {
		t.Fatal("expected audio stream detected")
	}
	if info.FrameRate < 23.97 || info.FrameRate > 23.98 {
		t.Fatalf("frame rate = %f", info.FrameRate)
	}
}

func TestVideoFallsBackToDuration(t *testing.T) {
	payload := `{
      "streams": [{"codec_type": "video", "width": 640, "height": 480,
                   "pix_fmt": "yuv420p", "avg_frame_rate": "25/1"}],
      "format": {"duration": "10.0"}
    }`
	var result ffprobe.Result
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	info, err := result.Video()
	if err != nil {
		t.Fatalf("Video returned error: %v", err)
	}
	if info.FrameCount != 250 {
		t.Fatalf("frame count = %d, want 250", info.FrameCount)
	}
	if info.BitDepth != 8 {
		t.Fatalf("bit depth = %d, want 8", info.BitDepth)
	}
	if info.HasAudio {
		t.Fatal("expected no audio")
	}
}

func TestVideoMissingStream(t *testing.T) {
	var result ffprobe.Result
	if err := json.Unmarshal([]byte(`{"streams": [], "format": {}}`), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, err := result.Video(); err == nil {
		t.Fatal("expected error for missing video stream")
	}
}
