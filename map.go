package main

import (
	"strconv"
	"strings"
)

// DefaultTileURL OSM 标准瓦片服务
const DefaultTileURL = "https://tile.openstreetmap.org/{z}/{x}/{y}.png"

// TileServer 瓦片服务地址模板
type TileServer struct {
	Name   string
	URL    string
	Format string
}

// GetTileURL 获取瓦片URL
func (m *TileServer) GetTileURL(k TileKey) string {
	url := m.URL
	if url == "" {
		url = DefaultTileURL
	}
	url = strings.Replace(url, "{x}", strconv.Itoa(k.X), -1)
	url = strings.Replace(url, "{y}", strconv.Itoa(k.Y), -1)
	url = strings.Replace(url, "{z}", strconv.Itoa(k.Z), -1)
	return url
}
