package assetform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"setflow/internal/core/apperror"
	"setflow/internal/core/entity"
)

type State string

const (
	Idle                 State = "idle"
	UploadingImage       State = "uploading_image"
	UploadingAttachments State = "uploading_attachments"
	Submitting           State = "submitting"
	Success              State = "success"
	Failed               State = "failed"
)

// ErrBusy is returned by Submit when the form is not idle.
var ErrBusy = errors.New("form is not idle")

// ImageUploader stores an image and returns its URL. An empty URL means the
// store kept nothing.
type ImageUploader interface {
	UploadImage(ctx context.Context, u *Upload) (string, error)
}

type FileUploader interface {
	UploadFiles(ctx context.Context, uploads []*Upload) ([]entity.FileDescriptor, error)
}

// SubmitFunc persists the assembled payload.
type SubmitFunc func(ctx context.Context, p Payload) error

// Alerter shows a failure to the user.
type Alerter interface {
	Alert(ctx context.Context, err error)
}

type AlerterFunc func(ctx context.Context, err error)

func (f AlerterFunc) Alert(ctx context.Context, err error) { f(ctx, err) }

// Payload is the asset record handed to SubmitFunc.
type Payload struct {
	Fields               map[string]any          `json:"fields"`
	Specifications       map[string]any          `json:"specifications"`
	CustomSpecifications map[string]any          `json:"customSpecifications"`
	ImageURL             string                  `json:"imageUrl,omitempty"`
	Attachments          []entity.FileDescriptor `json:"attachments"`
}

// Flat merges the core fields with the nested maps and the stored files
// into one record.
func (p Payload) Flat() map[string]any {
	out := deepCopyMap(p.Fields)
	out[KeySpecifications] = deepCopyMap(p.Specifications)
	out[KeyCustomSpecifications] = deepCopyMap(p.CustomSpecifications)
	if p.ImageURL != "" {
		out[KeyImageURL] = p.ImageURL
	}
	out[KeyAttachments] = append([]entity.FileDescriptor(nil), p.Attachments...)
	return out
}

// requiredFields must be non-empty before anything is uploaded.
var requiredFields = []string{"name", KeyCategoryID}

func (f *Form) setState(s State) {
	f.state = s
	if f.cfg.OnState != nil {
		f.cfg.OnState(s)
	}
}

// Submit uploads the pending image, then the pending attachments, then
// passes the payload to the submit callback. Any failure is alerted, kept
// in LastError and returns the form to Idle without touching its data;
// the submit callback is not called when an upload failed.
func (f *Form) Submit(ctx context.Context) error {
	if f.state != Idle {
		return ErrBusy
	}
	f.lastErr = nil

	if err := f.checkRequired(); err != nil {
		return f.fail(ctx, err)
	}

	imageURL, _ := f.data[KeyImageURL].(string)
	if f.image != nil {
		f.setState(UploadingImage)
		if f.cfg.Images == nil {
			return f.fail(ctx, apperror.NewUploadFailed("image", errors.New("no image store configured")))
		}
		url, err := f.cfg.Images.UploadImage(ctx, f.image)
		if err != nil {
			return f.fail(ctx, uploadErr("image", err))
		}
		if url != "" {
			imageURL = url
		}
	}

	attachments, err := f.existingAttachments()
	if err != nil {
		return f.fail(ctx, apperror.NewValidation(err.Error()))
	}
	if len(f.attachments) > 0 {
		f.setState(UploadingAttachments)
		if f.cfg.Files == nil {
			return f.fail(ctx, apperror.NewUploadFailed("attachment", errors.New("no file store configured")))
		}
		stored, err := f.cfg.Files.UploadFiles(ctx, f.attachments)
		if err != nil {
			return f.fail(ctx, uploadErr("attachment", err))
		}
		attachments = append(attachments, stored...)
	}

	payload := Payload{
		Fields:               deepCopyMap(f.data),
		Specifications:       deepCopyMap(f.specs),
		CustomSpecifications: deepCopyMap(f.flat),
		ImageURL:             imageURL,
		Attachments:          attachments,
	}
	delete(payload.Fields, KeyImageURL)
	delete(payload.Fields, KeyAttachments)

	f.setState(Submitting)
	if f.cfg.Submit == nil {
		return f.fail(ctx, errors.New("no submit handler configured"))
	}
	if err := f.cfg.Submit(ctx, payload); err != nil {
		return f.fail(ctx, err)
	}

	if imageURL != "" {
		f.data[KeyImageURL] = imageURL
	}
	f.data[KeyAttachments] = attachments
	f.image = nil
	f.attachments = nil
	f.setState(Success)
	return nil
}

func (f *Form) checkRequired() error {
	var missing []string
	for _, k := range requiredFields {
		if s, _ := f.data[k].(string); strings.TrimSpace(s) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return apperror.NewValidation(fmt.Sprintf("%s is required", strings.Join(missing, ", "))).
		WithDetail("fields", missing)
}

func (f *Form) fail(ctx context.Context, err error) error {
	f.lastErr = err
	f.setState(Failed)
	if f.cfg.Alert != nil {
		f.cfg.Alert.Alert(ctx, err)
	}
	f.setState(Idle)
	return err
}

func uploadErr(what string, err error) error {
	if _, ok := apperror.AsAppError(err); ok {
		return err
	}
	return apperror.NewUploadFailed(what, err)
}
