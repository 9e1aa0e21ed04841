// Package progress defines the sink a run reports its stages and per-video
// outcomes to. A Reporter is created per run and passed to the components
// that need it; nothing here is process-global.
package progress

// Stage names a fatal-on-failure step of a run.
type Stage string

const (
	StageLock     Stage = "lock"
	StageResolve  Stage = "resolve"
	StageAssemble Stage = "assemble"
	StageOpen     Stage = "open"
	StageSample   Stage = "sample"
	StagePublish  Stage = "publish"
)

// VideoStatus is the outcome of one video as seen by a reporter.
type VideoStatus struct {
	Name    string
	Status  string
	Emitted int
	Total   int
	// SourceFrames is the decoder's expected frame count, 0 if unknown.
	SourceFrames int
	Err          string
}

// Reporter receives run progress. Video callbacks may arrive from several
// goroutines at once and implementations must be safe for that.
type Reporter interface {
	// Stage is called when the run enters a new stage.
	Stage(stage Stage)
	// Start is called once with the number of videos to process.
	Start(total int)
	// VideoStarted is called when a worker begins decoding a video.
	VideoStarted(name string)
	// VideoFinished is called once per video with its final status.
	VideoFinished(status VideoStatus)
	// Finish is called when every video has been handled.
	Finish()
}

// Nop is a Reporter that discards everything.
type Nop struct{}

func (Nop) Stage(Stage)               {}
func (Nop) Start(int)                 {}
func (Nop) VideoStarted(string)       {}
func (Nop) VideoFinished(VideoStatus) {}
func (Nop) Finish()                   {}

var _ Reporter = Nop{}
