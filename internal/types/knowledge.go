package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
)

// Knowledge node hierarchy levels, broadest first.
const (
  NodeLevelSubject = "subject"
  NodeLevelChapter = "chapter"
  NodeLevelConcept = "concept"
  NodeLevelDetail  = "detail"
)

// Knowledge edge relationship types.
const (
  EdgePrerequisite = "prerequisite"
  EdgeRelatedTo    = "related_to"
  EdgePartOf       = "part_of"
  EdgeExampleOf    = "example_of"
  EdgeLeadsTo      = "leads_to"
)

type KnowledgeNode struct {
  ID              uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  StudyMaterialID uuid.UUID       `gorm:"type:uuid;not null;index:idx_material_node_name,unique" json:"study_material_id"`
  StudyMaterial   *StudyMaterial  `gorm:"constraint:OnDelete:CASCADE;foreignKey:StudyMaterialID;references:ID" json:"study_material,omitempty"`
  Name            string          `gorm:"column:name;not null;index:idx_material_node_name,unique" json:"name"`
  Level           string          `gorm:"column:level;not null;default:'concept'" json:"level"`
  Difficulty      int             `gorm:"column:difficulty;not null;default:3" json:"difficulty"`
  Importance      int             `gorm:"column:importance;not null;default:3" json:"importance"`
  Active          bool            `gorm:"column:active;not null;default:true" json:"active"`
  CreatedAt       time.Time       `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt       time.Time       `gorm:"not null;default:now()" json:"updated_at"`
  DeletedAt       gorm.DeletedAt  `gorm:"index" json:"deleted_at,omitempty"`
}

func (KnowledgeNode) TableName() string {
  return "knowledge_node"
}

// KnowledgeEdge is directed: Node -> RelatedNode.
type KnowledgeEdge struct {
  ID                uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  NodeID            uuid.UUID       `gorm:"type:uuid;not null;index:idx_edge_pair,unique" json:"node_id"`
  Node              *KnowledgeNode  `gorm:"constraint:OnDelete:CASCADE;foreignKey:NodeID;references:ID" json:"node,omitempty"`
  RelatedNodeID     uuid.UUID       `gorm:"type:uuid;not null;index:idx_edge_pair,unique" json:"related_node_id"`
  RelatedNode       *KnowledgeNode  `gorm:"constraint:OnDelete:CASCADE;foreignKey:RelatedNodeID;references:ID" json:"related_node,omitempty"`
  RelationshipType  string          `gorm:"column:relationship_type;not null;index:idx_edge_pair,unique" json:"relationship_type"`
  Weight            float64         `gorm:"column:weight;not null;default:0.5" json:"weight"`
  Reasoning         string          `gorm:"column:reasoning" json:"reasoning"`
  Active            bool            `gorm:"column:active;not null;default:true" json:"active"`
  CreatedAt         time.Time       `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt         time.Time       `gorm:"not null;default:now()" json:"updated_at"`
}

func (KnowledgeEdge) TableName() string {
  return "knowledge_edge"
}

type QuestionConcept struct {
  ID                uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  QuestionID        uuid.UUID       `gorm:"type:uuid;not null;index:idx_question_node,unique" json:"question_id"`
  Question          *Question       `gorm:"constraint:OnDelete:CASCADE;foreignKey:QuestionID;references:ID" json:"question,omitempty"`
  KnowledgeNodeID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_question_node,unique" json:"knowledge_node_id"`
  KnowledgeNode     *KnowledgeNode  `gorm:"constraint:OnDelete:CASCADE;foreignKey:KnowledgeNodeID;references:ID" json:"knowledge_node,omitempty"`
  ImportanceLevel   int             `gorm:"column:importance_level;not null;default:3" json:"importance_level"`
  RelevanceScore    float64         `gorm:"column:relevance_score;not null;default:0" json:"relevance_score"`
  IsPrimaryConcept  bool            `gorm:"column:is_primary_concept;not null;default:false" json:"is_primary_concept"`
  ExtractionMethod  string          `gorm:"column:extraction_method" json:"extraction_method"`
  CreatedAt         time.Time       `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt         time.Time       `gorm:"not null;default:now()" json:"updated_at"`
}

func (QuestionConcept) TableName() string {
  return "question_concept"
}
