package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/model"
)

func TestNewForm_Defaults(t *testing.T) {
	f := NewForm(newFakeRepo(), nil)
	assert.Equal(t, "javascript", f.Language)
	assert.Equal(t, model.Languages[0], f.Language)
	assert.False(t, f.Pending())
	assert.Empty(t, f.Err())
	assert.False(t, f.Closed())
}

func TestForm_CycleLanguage(t *testing.T) {
	f := NewForm(newFakeRepo(), nil)

	f.CycleLanguage(1)
	assert.Equal(t, "typescript", f.Language)

	f.CycleLanguage(-2)
	assert.Equal(t, "markdown", f.Language, "wraps backwards")

	f.CycleLanguage(1)
	assert.Equal(t, "javascript", f.Language, "wraps forwards")

	f.CycleLanguage(len(model.Languages))
	assert.Equal(t, "javascript", f.Language)
}

func TestForm_Validate(t *testing.T) {
	f := NewForm(newFakeRepo(), nil)
	f.Title, f.Code = "t", "c"
	assert.NoError(t, f.Validate())

	f.Language = "cobol"
	err := f.Validate()
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, "Unsupported language: cobol", apperror.Message(err))
}

func TestForm_CallsOnAddedOnce(t *testing.T) {
	repo := newFakeRepo()
	var added []model.Snippet
	f := NewForm(repo, func(s model.Snippet) { added = append(added, s) })
	f.Title, f.Code, f.Description = "t", "c", "  about  "

	cmd := f.Submit("u1")
	f.complete(exec(t, cmd).(snippetInsertedMsg))

	assert.Len(t, added, 1)
	assert.Equal(t, "about", added[0].DescriptionText())
	assert.True(t, f.Closed())
	assert.Nil(t, f.Submit("u1"), "a closed form does not submit again")
}

func TestForm_UpdateIgnoresOtherForms(t *testing.T) {
	repo := newFakeRepo()
	a := NewForm(repo, nil)
	b := NewForm(repo, nil)
	a.Title, a.Code = "t", "c"

	msg := exec(t, a.Submit("u1"))
	b.Update(msg)
	assert.True(t, a.Pending())
	assert.False(t, b.Closed())

	a.Update(msg)
	assert.False(t, a.Pending())
	assert.True(t, a.Closed())
}
