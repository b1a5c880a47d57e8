package models

// 场景素材默认名
const (
	DefaultMapName     = "새 배경"
	DefaultHandoutName = "새 핸드아웃"
)

// CatalogItem 场景素材（背景、BGM、资料）
type CatalogItem struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Scene 会话共享场景
//
// 素材目录只追加；mapUrl/bgmUrl/activeHandout 是后写覆盖的指针，
// activeHandout 为 null 表示不展示资料。
type Scene struct {
	MapURL        string        `json:"mapUrl"`
	Maps          []CatalogItem `json:"maps"`
	BgmURL        string        `json:"bgmUrl"`
	Bgms          []CatalogItem `json:"bgms"`
	ActiveHandout *string       `json:"activeHandout"`
	Handouts      []CatalogItem `json:"handouts"`
}

// NewScene 空场景
func NewScene() Scene {
	return Scene{
		Maps:     []CatalogItem{},
		Bgms:     []CatalogItem{},
		Handouts: []CatalogItem{},
	}
}

// Session 跑团会话
type Session struct {
	ID        string `json:"id,omitempty"`
	KeeperID  string `json:"keeperId"`
	CreatedAt int64  `json:"createdAt"`
	Scene     Scene  `json:"scene"`
}

// IsKeeper KP判断（身份字符串比较）
func (s *Session) IsKeeper(uid string) bool {
	return uid != "" && s.KeeperID == uid
}
