package whatsapp

import (
	"context"
	"fmt"

	"go.mau.fi/whatsmeow/types"

	"github.com/vibin/wa-bridge/internal/core/domain"
)

// GetGroups returns the joined groups and records them as chats
func (a *WhatsAppAdapter) GetGroups(ctx context.Context) ([]domain.GroupInfo, error) {
	if !a.IsConnected() {
		return nil, domain.ErrNotConnected
	}

	groups, err := a.client.GetJoinedGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get groups: %w", err)
	}

	infos := make([]domain.GroupInfo, 0, len(groups))
	for _, group := range groups {
		info := groupInfoFrom(group)
		infos = append(infos, info)

		if group.Name != "" {
			a.chatNames.Store(info.ID, group.Name)
		}
		if a.sink != nil {
			chat := &domain.Chat{ID: info.ID, Name: group.Name, IsGroup: true}
			if err := a.sink.RecordChat(ctx, chat); err != nil {
				a.log.Warn("Failed to store group", "group_id", info.ID, "error", err)
			}
		}
	}
	return infos, nil
}

func groupInfoFrom(group *types.GroupInfo) domain.GroupInfo {
	name := group.Name
	if name == "" {
		name = group.JID.User
	}
	return domain.GroupInfo{
		ID:          group.JID.String(),
		Name:        name,
		MemberCount: len(group.Participants),
	}
}
