package domain

import (
	"github.com/yungbote/dialogforge-backend/internal/domain/dialog"
	"github.com/yungbote/dialogforge-backend/internal/domain/jobs"
)

type CharacterType = dialog.CharacterType

const (
	CharacterAEI  = dialog.CharacterAEI
	CharacterUser = dialog.CharacterUser
)

type DialogStatus = dialog.Status

const (
	DialogDraft      = dialog.StatusDraft
	DialogInProgress = dialog.StatusInProgress
	DialogCompleted  = dialog.StatusCompleted
)

type Character = dialog.Character
type Dialog = dialog.Dialog
type Message = dialog.Message

type DialogJobStatus = jobs.DialogJobStatus

const (
	DialogJobPending    = jobs.DialogJobPending
	DialogJobInProgress = jobs.DialogJobInProgress
	DialogJobCompleted  = jobs.DialogJobCompleted
	DialogJobFailed     = jobs.DialogJobFailed
)

var DialogJobStatuses = jobs.DialogJobStatuses

type DialogJob = jobs.DialogJob
