package handler

import (
	"log/slog"

	"github.com/ecnc-dev/task-tracker/backend/internal/domain"
)

// notify 尽力投递通知，失败不影响请求结果
func (h *Handler) notify(msg domain.MailMessage) {
	if h.mail == nil {
		return
	}

	if err := h.mail.Publish(msg); err != nil {
		slog.Error("无法将邮件发送到消息队列", "type", msg.Type, "to", msg.To, "error", err)
	}
}

func (h *Handler) notifyTaskAssigned(task *domain.Task, employee *domain.Employee) {
	data := domain.TaskAssignedMailData{
		EmployeeName: employee.Name,
		TaskTitle:    task.Title,
		Description:  task.Description,
		Status:       string(task.Status),
	}
	if task.DueDate != nil {
		data.DueDate = task.DueDate.String()
	}

	h.notify(domain.MailMessage{
		Type: domain.MailTypeTaskAssigned,
		To:   employee.Email,
		Data: data,
	})
}
