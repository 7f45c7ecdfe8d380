package mailer

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"path/filepath"

	"github.com/ecnc-dev/task-tracker/backend/internal/domain"
)

var ErrUnknownMailType = errors.New("unknown mail type")

type mailKind struct {
	file    string
	subject string
}

var mailKinds = map[string]mailKind{
	domain.MailTypeWelcome:      {file: "welcome_email.html", subject: "Task Tracker - Welcome"},
	domain.MailTypeTaskAssigned: {file: "task_assigned_email.html", subject: "Task Tracker - New task assigned"},
}

// Renderer 从模板目录加载邮件模板
type Renderer struct {
	dir string
}

func NewRenderer(dir string) *Renderer {
	return &Renderer{dir: dir}
}

func Decode(body []byte) (*domain.MailMessage, error) {
	msg := &domain.MailMessage{}
	if err := json.Unmarshal(body, msg); err != nil {
		return nil, err
	}
	if msg.To == "" {
		return nil, errors.New("mail message has no recipient")
	}
	return msg, nil
}

// Template 返回邮件类型对应的主题和模板
func (r *Renderer) Template(mailType string) (string, *template.Template, error) {
	kind, ok := mailKinds[mailType]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownMailType, mailType)
	}

	tmpl, err := template.ParseFiles(filepath.Join(r.dir, kind.file))
	if err != nil {
		return "", nil, err
	}

	return kind.subject, tmpl, nil
}
