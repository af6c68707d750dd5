package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"mixlingo/internal/language"
	"mixlingo/internal/logging"
	"mixlingo/internal/services"
	"mixlingo/internal/transcriber"
)

// LivenessText is the body of GET /.
const LivenessText = "Mixed-Language Translator Server is running!"

const (
	msgNoAudio        = "No audio file uploaded."
	msgEmptyAudio     = "Uploaded audio file is empty."
	msgAudioTooLarge  = "Audio file exceeds the upload limit."
	msgTranscribeFail = "Failed to transcribe audio."
	msgNotFound       = "not found"
	msgMethod         = "method not allowed"
)

// uploadField is the multipart field carrying audio.
const uploadField = "audioFile"

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.writeError(w, http.StatusMethodNotAllowed, msgMethod)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, LivenessText)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, msgMethod)
		return
	}
	stats := s.hub.Snapshot()
	uptime := time.Since(s.started)
	s.writeJSON(w, http.StatusOK, StatusResponse{
		Status:         "ok",
		Connections:    stats.Connections,
		SessionsServed: stats.SessionsServed,
		Uptime:         uptime.Round(time.Second).String(),
		UptimeSeconds:  uptime.Seconds(),
		InFlight: InFlight{
			AwaitingMap:         stats.AwaitingMap,
			AwaitingTranslation: stats.AwaitingTranslation,
		},
		Capabilities: s.pipeline.Capabilities(),
		GRPCAddress:  s.GRPCAddr(),
	})
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, msgMethod)
		return
	}
	s.writeJSON(w, http.StatusOK, LanguagesResponse{
		Languages:     language.Supported(),
		DefaultInput:  language.Auto,
		DefaultOutput: language.DefaultTarget,
	})
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, msgMethod)
		return
	}
	ctx := services.WithRequestID(r.Context(), uuid.NewString())
	logger := logging.WithContext(ctx, s.logger)

	limit := s.cfg.MaxUploadBytes()
	if r.ContentLength > limit {
		logger.Warn("audio upload rejected", logging.String("reason", "too_large"), logging.Int("limit_mb", s.cfg.Server.MaxUploadMB))
		s.writeError(w, http.StatusRequestEntityTooLarge, msgAudioTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn("audio upload rejected", logging.String("reason", "too_large"), logging.Int("limit_mb", s.cfg.Server.MaxUploadMB))
			s.writeError(w, http.StatusRequestEntityTooLarge, msgAudioTooLarge)
			return
		}
		logger.Warn("audio upload rejected", logging.String("reason", "missing_file"), logging.Error(err))
		s.writeError(w, http.StatusBadRequest, msgNoAudio)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		logger.Warn("audio upload read failed", logging.Error(err))
		s.writeError(w, http.StatusBadRequest, msgNoAudio)
		return
	}
	if len(data) == 0 {
		s.writeError(w, http.StatusBadRequest, msgEmptyAudio)
		return
	}

	logger.Info("audio upload received", logging.String("filename", header.Filename), logging.Int("bytes", len(data)))
	text, err := s.pipeline.Transcriber.Transcribe(ctx, transcriber.AudioClip{Data: data, Filename: header.Filename})
	if err != nil {
		logger.Error("transcription endpoint failed",
			logging.String(logging.FieldEventType, "transcribe_endpoint_failed"),
			logging.String("error_kind", string(services.Classify(err))),
			logging.Error(err),
		)
		s.writeError(w, http.StatusInternalServerError, msgTranscribeFail)
		return
	}
	s.writeJSON(w, http.StatusOK, TranscribeResponse{TranscribedText: text})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}
