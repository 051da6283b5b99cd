package model

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// AnalysisState is the orchestrator state for a session.
type AnalysisState string

const (
	StateIdle                AnalysisState = "idle"
	StateAwaitingPatientInfo AnalysisState = "awaiting_patient_info"
	StateAnalyzing           AnalysisState = "analyzing"
	StateCompleted           AnalysisState = "completed"
	StateFailed              AnalysisState = "failed"
)

// AnalysisRequest is the immutable input unit sent to the AI text service.
type AnalysisRequest struct {
	PatientInfo PatientInfo
	ReportText  string
}

// MarshalJSON produces the wire payload {patient_name, age, gender, report}.
func (r AnalysisRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		PatientName string `json:"patient_name"`
		Age         int    `json:"age"`
		Gender      Gender `json:"gender"`
		Report      string `json:"report"`
	}{
		PatientName: r.PatientInfo.Name,
		Age:         r.PatientInfo.AgeValue(),
		Gender:      r.PatientInfo.Gender,
		Report:      r.ReportText,
	})
}

// AnalysisSections are the headers an English analysis must contain, in
// this order.
var AnalysisSections = []string{
	"### Medical Analysis Summary",
	"### Health Recommendations",
	"### Risk Assessment",
	"### Follow-up Actions",
}

// MissingSections returns the headers that do not appear in order in text.
func MissingSections(text string) []string {
	var missing []string
	pos := 0
	for _, header := range AnalysisSections {
		i := strings.Index(text[pos:], header)
		if i < 0 {
			missing = append(missing, strings.TrimPrefix(header, "### "))
			continue
		}
		pos += i + len(header)
	}
	return missing
}

// Pipeline steps, used in notices, logs and metrics.
const (
	StepPersistUserMessage      = "persist_user_message"
	StepEnglishAnalysis         = "english_analysis"
	StepPersistAssistantMessage = "persist_assistant_message"
	StepUrduScript              = "urdu_script"
	StepSpeechSynthesis         = "speech_synthesis"
	StepSectionCheck            = "section_check"
)

// Notice is a non-fatal, user-visible report of one isolated step failure.
type Notice struct {
	Step    string `json:"step"`
	Message string `json:"message"`
}

// AnalysisResult is the output unit of one orchestration call. Either field
// may be empty independently of the other.
type AnalysisResult struct {
	SessionID      uuid.UUID     `json:"session_id"`
	State          AnalysisState `json:"state"`
	EnglishSummary string        `json:"english_summary,omitempty"`
	UrduAudioURL   string        `json:"urdu_audio_url,omitempty"`
	AudioID        string        `json:"audio_id,omitempty"`
	Messages       []Message     `json:"messages"`
	Notices        []Notice      `json:"notices,omitempty"`
}

func (r *AnalysisResult) HasSummary() bool {
	return r.EnglishSummary != ""
}

func (r *AnalysisResult) HasAudio() bool {
	return r.UrduAudioURL != ""
}

// Audio is a synthesized speech payload.
type Audio struct {
	Data        []byte
	ContentType string
}

// Usage reports the caller's daily analysis quota.
type Usage struct {
	Used      int `json:"used"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}
