package gormstore

import (
	"time"

	"github.com/narulaskaran/social-graph/domain/core/entities"
)

type graphModel struct {
	ID        string `gorm:"primaryKey;size:12"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Profiles    []profileModel    `gorm:"foreignKey:GraphID;constraint:OnDelete:CASCADE"`
	Connections []connectionModel `gorm:"foreignKey:GraphID;constraint:OnDelete:CASCADE"`
}

func (graphModel) TableName() string { return "graphs" }

type profileModel struct {
	ID        string `gorm:"primaryKey;size:36"`
	GraphID   string `gorm:"size:12;not null;uniqueIndex:idx_profiles_graph_name,priority:1"`
	FirstName string `gorm:"not null;uniqueIndex:idx_profiles_graph_name,priority:2"`
	LastName  string `gorm:"not null;uniqueIndex:idx_profiles_graph_name,priority:3"`

	OutgoingConnections []connectionModel `gorm:"foreignKey:ProfileAID;constraint:OnDelete:CASCADE"`
	IncomingConnections []connectionModel `gorm:"foreignKey:ProfileBID;constraint:OnDelete:CASCADE"`
}

func (profileModel) TableName() string { return "profiles" }

// connectionModel rows are always canonical: ProfileAID < ProfileBID
type connectionModel struct {
	ProfileAID string `gorm:"primaryKey;size:36"`
	ProfileBID string `gorm:"primaryKey;size:36"`
	GraphID    string `gorm:"primaryKey;size:12;index"`
}

func (connectionModel) TableName() string { return "connections" }

func graphFromModel(m graphModel) *entities.Graph {
	return &entities.Graph{ID: m.ID, CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()}
}

func profileToModel(p entities.Profile) profileModel {
	return profileModel{ID: p.ID, GraphID: p.GraphID, FirstName: p.FirstName, LastName: p.LastName}
}

func profileFromModel(m profileModel) entities.Profile {
	return entities.Profile{ID: m.ID, GraphID: m.GraphID, FirstName: m.FirstName, LastName: m.LastName}
}

func connectionFromModel(m connectionModel) entities.Connection {
	return entities.Connection{ProfileAID: m.ProfileAID, ProfileBID: m.ProfileBID, GraphID: m.GraphID}
}
