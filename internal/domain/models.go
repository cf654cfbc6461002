// Package domain defines the persistence models for chats, messages,
// attachments, and notifications. These types are mapped with GORM and form
// the core data layer of the messaging subsystem.
package domain

import (
	"time"
)

// MessageStatusSent is the only delivery status a persisted message can
// carry. Richer read-receipt states are deliberately not modeled; a row's
// existence is the delivery guarantee and live push is an optimization.
const MessageStatusSent = "sent"

// User is the read-only projection of an account owned by the external
// admin system. The messaging subsystem never creates or mutates users;
// it only resolves roles for chat pairing validation.
type User struct {
	ID        int64     `json:"id"       gorm:"primaryKey"`
	Role      Role      `json:"role"     gorm:"type:varchar(16);not null;check:role IN ('docente','estudiante','admin')"`
	Name      string    `json:"name"     gorm:"type:varchar(128);not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Chat represents a two-party conversation. The participant pair is
/// unordered and unique: the pair is normalized so that UserA < UserB, and
// a unique index guarantees one row per pair.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserA / UserB: normalized participant ids (UserA < UserB).
//   - CreatedAt: timestamp managed by GORM.
type Chat struct {
	ID        string    `json:"id"      gorm:"type:char(36);primaryKey"`
	UserA     int64     `json:"user_a"  gorm:"not null;uniqueIndex:ux_chat_pair,priority:1;index"`
	UserB     int64     `json:"user_b"  gorm:"not null;uniqueIndex:ux_chat_pair,priority:2;index"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Chat.
func (Chat) TableName() string { return "chats" }

// Has reports whether userID is one of the chat's two participants.
func (c *Chat) Has(userID int64) bool {
	return c.UserA == userID || c.UserB == userID
}

// Other returns the participant that is not userID. The caller must have
// verified membership with Has first.
func (c *Chat) Other(userID int64) int64 {
	if c.UserA == userID {
		return c.UserB
	}
	return c.UserA
}

// NormalizePair orders a participant pair so that the smaller id comes
// first. Chats are stored and looked up in this canonical order.
func NormalizePair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

// Message represents one persisted unit of chat content. The integer
// primary key is assigned by the database in insertion order and serves as
// the tie-break of the per-chat total order (CreatedAt, ID).
//
// Fields:
//   - ID: autoincrement primary key; doubles as the insertion sequence.
//   - ChatID: foreign key to the owning chat (indexed with CreatedAt).
//   - SenderID: id of the authoring participant.
//   - Body: optional text content (empty when attachment-only).
//   - Status: always "sent" once persisted.
//   - Attachment: optional associated file, cascade-deleted with the message.
type Message struct {
	ID        int64     `json:"id"        gorm:"primaryKey;autoIncrement"`
	ChatID    string    `json:"chat_id"   gorm:"type:char(36);not null;index:idx_chat_msgs,priority:1"`
	SenderID  int64     `json:"sender_id" gorm:"not null"`
	Body      string    `json:"body"      gorm:"type:text"`
	Status    string    `json:"status"    gorm:"type:varchar(16);not null;default:'sent'"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_chat_msgs,priority:2"`

	Attachment *Attachment `json:"attachment,omitempty" gorm:"foreignKey:MessageID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`

	// Chat is the parent conversation.
	Chat Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Attachment is a validated, stored binary file referenced by exactly one
// message. Rows are immutable once written and are removed only when the
// owning message is deleted (no delete path exists in normal operation).
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - MessageID: owning message (unique; one attachment per message).
//   - Ref: opaque store reference resolved by the attachment store.
//   - Filename: original client-supplied filename (display only).
//   - MimeType: declared or sniffed MIME type from the allow-list.
//   - SizeBytes: payload size, capped by configuration at store time.
type Attachment struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	MessageID int64     `json:"message_id" gorm:"not null;uniqueIndex"`
	Ref       string    `json:"ref"        gorm:"type:varchar(64);not null;uniqueIndex"`
	Filename  string    `json:"filename"   gorm:"type:varchar(255);not null"`
	MimeType  string    `json:"mime_type"  gorm:"type:varchar(128);not null"`
	SizeBytes int64     `json:"size_bytes" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Attachment.
func (Attachment) TableName() string { return "attachments" }

// NotificationKind is the closed set of notification categories.
type NotificationKind string

const (
	KindEntrega      NotificationKind = "entrega"
	KindActividad    NotificationKind = "actividad"
	KindCalificacion NotificationKind = "calificacion"
	KindSistema      NotificationKind = "sistema"
	KindMensaje      NotificationKind = "mensaje"
	KindAlerta       NotificationKind = "alerta"
)

// Valid reports whether k is one of the known notification kinds.
func (k NotificationKind) Valid() bool {
	switch k {
	case KindEntrega, KindActividad, KindCalificacion, KindSistema, KindMensaje, KindAlerta:
		return true
	default:
		return false
	}
}

// Notification is a persisted alert tied to one recipient. There is no
// read/unread flag: a notification exists until it is acknowledged, and
// acknowledgment deletes the row. Optional references point back at the
// originating domain object (activity, submission) owned by external
// collaborators.
type Notification struct {
	ID          string           `json:"id"           gorm:"type:char(36);primaryKey"`
	RecipientID int64            `json:"recipient_id" gorm:"not null;index:idx_recipient_notifs,priority:1"`
	Kind        NotificationKind `json:"kind"         gorm:"type:varchar(16);not null"`
	Body        string           `json:"body"         gorm:"type:text;not null"`
	ActividadID *int64           `json:"actividad_id,omitempty"`
	EntregaID   *int64           `json:"entrega_id,omitempty"`
	CreatedAt   time.Time        `json:"created_at"   gorm:"index:idx_recipient_notifs,priority:2"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }
