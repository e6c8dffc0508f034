package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/kirana/domain"
	"github.com/satriahrh/kirana/domain/entities"
	"github.com/satriahrh/kirana/domain/repositories"
)

const enhanceSystemInstruction = "You rewrite short image requests into rich, detailed image-generation prompts. " +
	"Reply with the rewritten prompt only, no preamble and no quotes."

// ImageWorkflow drives the per-message image sub-state-machine:
// confirming_prompt -> generating -> done, with generating -> error and
// done -> generating (regenerate) as extra edges. Failures land in the
// message's image data and never escape to the surrounding turn.
type ImageWorkflow struct {
	store    *SessionStore
	provider repositories.Provider
	logger   *zap.Logger
}

// NewImageWorkflow creates the image workflow
func NewImageWorkflow(store *SessionStore, provider repositories.Provider, logger *zap.Logger) *ImageWorkflow {
	return &ImageWorkflow{
		store:    store,
		provider: provider,
		logger:   logger,
	}
}

// Start creates an assistant message in confirming_prompt for the literal
// user prompt, then requests a detail-enriched prompt for confirmation. On
// enhancement failure the message transitions straight to error; the workflow
// never falls back to plain chat. Returns the message id owning the workflow.
func (w *ImageWorkflow) Start(ctx context.Context, sessionID, originalPrompt string) string {
	msg := entities.NewAssistantMessage("Refining your prompt...", false)
	msg.ImageGen = &entities.ImageGenerationData{
		Status:         entities.ImageStatusConfirmingPrompt,
		OriginalPrompt: originalPrompt,
		Prompt:         originalPrompt,
		Images:         make([]entities.GeneratedImage, 0),
	}
	w.store.AppendMessage(sessionID, msg)

	enhanced, err := w.provider.GeneratePlainText(ctx,
		fmt.Sprintf("Rewrite this image request: %q", originalPrompt),
		enhanceSystemInstruction)
	if err != nil {
		w.logger.Error("Prompt enhancement failed",
			zap.String("messageID", msg.ID),
			zap.Error(err))
		w.store.UpdateMessage(sessionID, msg.ID, func(m *entities.Message) {
			if m.ImageGen == nil {
				return
			}
			m.ImageGen.Status = entities.ImageStatusError
			m.ImageGen.Error = domain.UserMessage(err)
			m.Text = "I couldn't prepare that image request."
		})
		return msg.ID
	}

	w.store.UpdateMessage(sessionID, msg.ID, func(m *entities.Message) {
		// The user may have cancelled while enhancement was in flight.
		if m.ImageGen == nil || m.ImageGen.Status != entities.ImageStatusConfirmingPrompt {
			return
		}
		m.ImageGen.Prompt = enhanced
		m.Text = "Here's the prompt I'll use. Confirm to generate the image."
	})
	return msg.ID
}

// Confirm resolves the confirmation step. Rejection clears the image data and
// replaces the message text with a cancellation notice; acceptance runs the
// generation step.
func (w *ImageWorkflow) Confirm(ctx context.Context, sessionID, messageID string, accept bool) error {
	if !accept {
		return w.Cancel(sessionID, messageID)
	}
	return w.generate(ctx, sessionID, messageID, entities.ImageStatusConfirmingPrompt)
}

// Regenerate re-runs generation with the same enhanced prompt. Valid only
// from done; a call while generating is rejected.
func (w *ImageWorkflow) Regenerate(ctx context.Context, sessionID, messageID string) error {
	return w.generate(ctx, sessionID, messageID, entities.ImageStatusDone)
}

// Cancel aborts the workflow: image data is cleared and the message text is
// replaced with a cancellation notice. It never leaves a dangling generating
// status.
func (w *ImageWorkflow) Cancel(sessionID, messageID string) error {
	var missing error
	ok := w.store.UpdateMessage(sessionID, messageID, func(m *entities.Message) {
		if m.ImageGen == nil {
			missing = fmt.Errorf("message %s has no image workflow", messageID)
			return
		}
		m.ImageGen = nil
		m.Text = "Image generation cancelled."
	})
	if !ok {
		return fmt.Errorf("message %s not found", messageID)
	}
	if missing != nil {
		return missing
	}
	w.logger.Info("Image workflow cancelled",
		zap.String("sessionID", sessionID),
		zap.String("messageID", messageID),
		zap.String("reason", domain.ErrUserCancelled.Error()))
	return nil
}

// generate moves the workflow into generating (validating the source state),
// requests one image, and appends it to the history. Images are appended,
// never replaced, so regeneration keeps the full history with the most
// recent image last.
func (w *ImageWorkflow) generate(ctx context.Context, sessionID, messageID string, from entities.ImageGenerationStatus) error {
	var prompt string
	var transitionErr error

	ok := w.store.UpdateMessage(sessionID, messageID, func(m *entities.Message) {
		if m.ImageGen == nil {
			transitionErr = fmt.Errorf("message %s has no image workflow", messageID)
			return
		}
		if m.ImageGen.Status != from {
			transitionErr = fmt.Errorf("cannot generate from status %q", m.ImageGen.Status)
			return
		}
		m.ImageGen.Status = entities.ImageStatusGenerating
		m.ImageGen.Error = ""
		m.Text = "Generating your image..."
		prompt = m.ImageGen.Prompt
	})
	if !ok {
		return fmt.Errorf("message %s not found", messageID)
	}
	if transitionErr != nil {
		return transitionErr
	}

	img, err := w.provider.GenerateImage(ctx, prompt)
	if err != nil {
		w.logger.Error("Image generation failed",
			zap.String("messageID", messageID),
			zap.Error(err))
		w.store.UpdateMessage(sessionID, messageID, func(m *entities.Message) {
			if m.ImageGen == nil {
				return
			}
			m.ImageGen.Status = entities.ImageStatusError
			m.ImageGen.Error = domain.UserMessage(err)
			m.Text = "Image generation failed."
		})
		return nil
	}

	url := fmt.Sprintf("data:%s;base64,%s", img.MIMEType, img.Base64Data)
	w.store.UpdateMessage(sessionID, messageID, func(m *entities.Message) {
		if m.ImageGen == nil {
			return
		}
		m.ImageGen.Status = entities.ImageStatusDone
		m.ImageGen.Images = append(m.ImageGen.Images, entities.GeneratedImage{URL: url, Prompt: prompt})
		m.Text = "Here's your image."
	})

	w.logger.Info("Image generated",
		zap.String("sessionID", sessionID),
		zap.String("messageID", messageID))
	return nil
}
