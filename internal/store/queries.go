package store

import (
	"fmt"
)

// ChatVolume holds the top-line chat counts.
type ChatVolume struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Archived int `json:"archived"`
	Pinned   int `json:"pinned"`
}

// Volume counts chats by archived/pinned status.
func (d *DB) Volume() (ChatVolume, error) {
	var v ChatVolume
	err := d.conn.QueryRow(`
		SELECT
			COUNT(*),
			SUM(CASE WHEN archived = 1 THEN 1 ELSE 0 END),
			SUM(CASE WHEN archived = 0 OR archived IS NULL THEN 1 ELSE 0 END),
			SUM(CASE WHEN pinned = 1 THEN 1 ELSE 0 END)
		FROM chat
	`).Scan(&v.Total, &nullInt{&v.Archived}, &nullInt{&v.Active}, &nullInt{&v.Pinned})
	if err != nil {
		return v, fmt.Errorf("failed to query chat volume: %w", err)
	}
	return v, nil
}

// UserChatCount is chats-per-user for one user.
type UserChatCount struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Chats int    `json:"chats"`
}

// ChatsPerUser returns per-user chat counts, busiest first. Chats whose user
// no longer exists are grouped under "Unknown".
func (d *DB) ChatsPerUser(limit int) ([]UserChatCount, error) {
	rows, err := d.conn.Query(`
		SELECT COALESCE(u.name, 'Unknown'), COALESCE(u.email, 'N/A'), COUNT(c.id) AS chat_count
		FROM chat c
		LEFT JOIN user u ON c.user_id = u.id
		GROUP BY c.user_id
		ORDER BY chat_count DESC, c.user_id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats per user: %w", err)
	}
	defer rows.Close()

	var counts []UserChatCount
	for rows.Next() {
		var uc UserChatCount
		if err := rows.Scan(&uc.Name, &uc.Email, &uc.Chats); err != nil {
			return nil, fmt.Errorf("failed to scan chats-per-user row: %w", err)
		}
		counts = append(counts, uc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chats per user: %w", err)
	}
	return counts, nil
}

// RoleCount is the number of users holding one role.
type RoleCount struct {
	Role  string `json:"role"`
	Count int    `json:"count"`
}

// UsersByRole counts users per role, most common first.
func (d *DB) UsersByRole() ([]RoleCount, error) {
	rows, err := d.conn.Query(`
		SELECT COALESCE(role, ''), COUNT(*) AS count
		FROM user
		GROUP BY role
		ORDER BY count DESC, role
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users by role: %w", err)
	}
	defer rows.Close()

	var roles []RoleCount
	for rows.Next() {
		var rc RoleCount
		if err := rows.Scan(&rc.Role, &rc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan role row: %w", err)
		}
		roles = append(roles, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating roles: %w", err)
	}
	return roles, nil
}

// UserActivity is one user's recency and chat volume.
type UserActivity struct {
	Name         string `json:"name"`
	Role         string `json:"role"`
	Chats        int    `json:"chats"`
	LastActiveAt int64  `json:"last_active_at"`
}

// RecentActivity lists users by most recent activity with their chat counts.
func (d *DB) RecentActivity(limit int) ([]UserActivity, error) {
	rows, err := d.conn.Query(`
		SELECT COALESCE(name, 'Unknown'), COALESCE(role, ''),
		       (SELECT COUNT(*) FROM chat WHERE chat.user_id = user.id),
		       COALESCE(last_active_at, 0)
		FROM user
		ORDER BY last_active_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query user activity: %w", err)
	}
	defer rows.Close()

	var activity []UserActivity
	for rows.Next() {
		var ua UserActivity
		if err := rows.Scan(&ua.Name, &ua.Role, &ua.Chats, &ua.LastActiveAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		activity = append(activity, ua)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity: %w", err)
	}
	return activity, nil
}

// nullInt scans a possibly-NULL aggregate into an int, defaulting to 0.
// SUM() over an empty table is NULL, not 0.
type nullInt struct {
	dst *int
}

func (n *nullInt) Scan(src any) error {
	if src == nil {
		*n.dst = 0
		return nil
	}
	switch v := src.(type) {
	case int64:
		*n.dst = int(v)
	case float64:
		*n.dst = int(v)
	default:
		return fmt.Errorf("unexpected aggregate type %T", src)
	}
	return nil
}
