package models

import (
	"path/filepath"
	"strings"
	"time"
)

// ProcessStatus is the state of one post-processing step. The numeric values
// are the codes already stored by existing archive deployments.
type ProcessStatus int

const (
	StatusPending     ProcessStatus = 0
	StatusSuccess     ProcessStatus = 1
	StatusFailed      ProcessStatus = 2
	StatusUnsupported ProcessStatus = 3
)

func (s ProcessStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// OriginalText is one uploaded file attached to an archival entry.
type OriginalText struct {
	ID                 string         `json:"id" bson:"_id" firestore:"id"`
	CatalogueID        int            `json:"catalogueId" bson:"catalogueId" firestore:"catalogueId"`
	EntryID            string         `json:"entryId" bson:"entryId" firestore:"entryId"`
	Title              string         `json:"title" bson:"title" firestore:"title"`
	Type               int            `json:"type" bson:"type" firestore:"type"`
	Version            string         `json:"version" bson:"version" firestore:"version"`
	Remark             string         `json:"remark" bson:"remark" firestore:"remark"`
	Name               string         `json:"name" bson:"name" firestore:"name"`
	Size               int64          `json:"size" bson:"size" firestore:"size"`
	MD5                string         `json:"md5" bson:"md5" firestore:"md5"`
	OrderNumber        int            `json:"orderNumber" bson:"orderNumber" firestore:"orderNumber"`
	ContentIndex       string         `json:"contentIndex,omitempty" bson:"contentIndex,omitempty" firestore:"contentIndex,omitempty"`
	ContentIndexStatus ProcessStatus  `json:"contentIndexStatus" bson:"contentIndexStatus" firestore:"contentIndexStatus"`
	PDFMD5             string         `json:"pdfMd5,omitempty" bson:"pdfMd5,omitempty" firestore:"pdfMd5,omitempty"`
	PDFConverStatus    ProcessStatus  `json:"pdfConverStatus" bson:"pdfConverStatus" firestore:"pdfConverStatus"`
	FileAttributesMap  map[string]any `json:"fileAttributesMap,omitempty" bson:"fileAttributesMap,omitempty" firestore:"fileAttributesMap,omitempty"`
	CreateTime         time.Time      `json:"createTime" bson:"createTime" firestore:"createTime"`
	GmtCreate          time.Time      `json:"gmtCreate" bson:"gmtCreate" firestore:"gmtCreate"`
	GmtModified        time.Time      `json:"gmtModified" bson:"gmtModified" firestore:"gmtModified"`
}

// Metadata is the caller-editable descriptive subset of an artifact.
type Metadata struct {
	Title   string
	Type    int
	Version string
	Remark  string
}

func (o OriginalText) Metadata() Metadata {
	return Metadata{Title: o.Title, Type: o.Type, Version: o.Version, Remark: o.Remark}
}

// PDFName is the download name of the PDF rendition.
func (o OriginalText) PDFName() string {
	base := strings.TrimSuffix(o.Name, filepath.Ext(o.Name))
	return base + ".pdf"
}

// Describe returns the descriptive subset exposed by the get operation.
func (o OriginalText) Describe() map[string]any {
	return map[string]any{
		"id":      o.ID,
		"title":   o.Title,
		"type":    o.Type,
		"version": o.Version,
		"remark":  o.Remark,
	}
}

// ArtifactRef addresses one artifact for deletion.
type ArtifactRef struct {
	ID          string `json:"id"`
	CatalogueID int    `json:"catalogueId"`
}

type ResultKind string

const ResultKindFile ResultKind = "file"

type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultFailure ResultStatus = "failure"
)

// ArchivingResult reports the outcome of one item in an archive batch.
type ArchivingResult struct {
	SourceID      string       `json:"sourceId"`
	SourceEntryID string       `json:"sourceEntryId"`
	TargetID      string       `json:"targetId,omitempty"`
	Title         string       `json:"title"`
	Message       string       `json:"message,omitempty"`
	Kind          ResultKind   `json:"type"`
	Status        ResultStatus `json:"status"`
}

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = 10
	}
	if p.Size > 1000 {
		p.Size = 1000
	}
	return p
}

func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Number - 1) * p.Size
}

// PageResult is one page of artifacts plus the total match count.
type PageResult struct {
	Items []OriginalText `json:"items"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
}
