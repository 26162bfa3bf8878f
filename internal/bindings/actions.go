package bindings

import "github.com/MarcoPoloResearchLab/keyhub/internal/keycodes"

// Action is an opaque control tag such as "jump".
type Action string

// String returns the tag.
func (action Action) String() string {
	return string(action)
}

// Category groups actions for the editor.
type Category string

const (
	CategoryMovement   Category = "movement"
	CategoryCombat     Category = "combat"
	CategoryInventory  Category = "inventory"
	CategoryUI         Category = "ui"
	CategoryCustom     Category = "custom"
	CategoryController Category = "controller"
)

// Mode selects which action vocabulary is active.
type Mode string

const (
	// ModeKeyboardMouse covers every category except controller.
	ModeKeyboardMouse Mode = "keyboard_mouse"
	// ModeController covers only controller actions.
	ModeController Mode = "controller"
)

// ParseMode returns the mode for tag, defaulting to ModeKeyboardMouse.
func ParseMode(tag string) Mode {
	if Mode(tag) == ModeController {
		return ModeController
	}
	return ModeKeyboardMouse
}

// ModeOf returns the mode whose vocabulary contains category.
func ModeOf(category Category) Mode {
	if category == CategoryController {
		return ModeController
	}
	return ModeKeyboardMouse
}

type actionDefinition struct {
	action     Action
	category   Category
	defaultKey keycodes.KeyCode
}

var vocabulary = []actionDefinition{
	{action: "move_forward", category: CategoryMovement, defaultKey: "KeyW"},
	{action: "move_backward", category: CategoryMovement, defaultKey: "KeyS"},
	{action: "strafe_left", category: CategoryMovement, defaultKey: "KeyA"},
	{action: "strafe_right", category: CategoryMovement, defaultKey: "KeyD"},
	{action: "jump", category: CategoryMovement, defaultKey: "Space"},
	{action: "sneak", category: CategoryMovement, defaultKey: "ShiftLeft"},
	{action: "sprint", category: CategoryMovement, defaultKey: "ControlLeft"},

	{action: "attack", category: CategoryCombat, defaultKey: "Mouse0"},
	{action: "use_item", category: CategoryCombat, defaultKey: "Mouse2"},
	{action: "pick_block", category: CategoryCombat, defaultKey: "Mouse1"},

	{action: "inventory", category: CategoryInventory, defaultKey: "KeyE"},
	{action: "drop_item", category: CategoryInventory, defaultKey: "KeyQ"},
	{action: "swap_offhand", category: CategoryInventory, defaultKey: "KeyF"},
	{action: "hotbar_1", category: CategoryInventory, defaultKey: "Digit1"},
	{action: "hotbar_2", category: CategoryInventory, defaultKey: "Digit2"},
	{action: "hotbar_3", category: CategoryInventory, defaultKey: "Digit3"},
	{action: "hotbar_4", category: CategoryInventory, defaultKey: "Digit4"},
	{action: "hotbar_5", category: CategoryInventory, defaultKey: "Digit5"},
	{action: "hotbar_6", category: CategoryInventory, defaultKey: "Digit6"},
	{action: "hotbar_7", category: CategoryInventory, defaultKey: "Digit7"},
	{action: "hotbar_8", category: CategoryInventory, defaultKey: "Digit8"},
	{action: "hotbar_9", category: CategoryInventory, defaultKey: "Digit9"},

	{action: "chat", category: CategoryUI, defaultKey: "KeyT"},
	{action: "command", category: CategoryUI, defaultKey: "Slash"},
	{action: "player_list", category: CategoryUI, defaultKey: "Tab"},
	{action: "toggle_perspective", category: CategoryUI, defaultKey: "F5"},
	{action: "screenshot", category: CategoryUI, defaultKey: "F2"},
	{action: "pause_menu", category: CategoryUI, defaultKey: "Escape"},

	{action: "controller_jump", category: CategoryController, defaultKey: "GamepadA"},
	{action: "controller_sneak", category: CategoryController, defaultKey: "GamepadRS"},
	{action: "controller_attack", category: CategoryController, defaultKey: "GamepadRT"},
	{action: "controller_use_item", category: CategoryController, defaultKey: "GamepadLT"},
	{action: "controller_inventory", category: CategoryController, defaultKey: "GamepadY"},
	{action: "controller_drop_item", category: CategoryController, defaultKey: "GamepadB"},
	{action: "controller_hotbar_next", category: CategoryController, defaultKey: "GamepadRB"},
	{action: "controller_hotbar_previous", category: CategoryController, defaultKey: "GamepadLB"},
	{action: "controller_pause_menu", category: CategoryController, defaultKey: "GamepadStart"},
	{action: "controller_player_list", category: CategoryController, defaultKey: "GamepadBack"},
}

var categoryByAction = func() map[Action]Category {
	index := make(map[Action]Category, len(vocabulary))
	for _, definition := range vocabulary {
		index[definition.action] = definition.category
	}
	return index
}()

// CategoryOf returns the category of a known action.
func CategoryOf(action Action) (Category, bool) {
	category, ok := categoryByAction[action]
	return category, ok
}

// IsKnown reports whether action belongs to the fixed vocabulary.
func IsKnown(action Action) bool {
	_, ok := categoryByAction[action]
	return ok
}

// Actions lists the vocabulary of mode in display order.
func Actions(mode Mode) []Action {
	actions := make([]Action, 0, len(vocabulary))
	for _, definition := range vocabulary {
		if ModeOf(definition.category) == mode {
			actions = append(actions, definition.action)
		}
	}
	return actions
}

// DefaultRows returns the starter bindings for both modes.
func DefaultRows() []Binding {
	rows := make([]Binding, 0, len(vocabulary))
	for _, definition := range vocabulary {
		rows = append(rows, Binding{
			Action:   definition.action,
			Category: definition.category,
			Key:      keycodes.Bound(definition.defaultKey),
		})
	}
	return rows
}
