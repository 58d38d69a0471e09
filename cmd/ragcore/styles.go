package main

import "github.com/charmbracelet/lipgloss"

var (
	rankStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	textStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
)
